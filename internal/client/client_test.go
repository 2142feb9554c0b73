package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/studynotes/internal/api"
	"github.com/starford/studynotes/internal/identity"
	"github.com/starford/studynotes/internal/notequery"
	"github.com/starford/studynotes/internal/noteservice"
	"github.com/starford/studynotes/internal/orphans"
	"github.com/starford/studynotes/internal/testutil"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testutil.TestDB(t)
	_, bucket := testutil.TestBucket(t)
	idp, err := identity.NewLocal(identity.LocalConfig{Secret: "client-test", TokenTTL: time.Hour},
		db, identity.NewMemoryRevoker(), identity.LogNotifier{})
	require.NoError(t, err)

	svc := noteservice.NewService(db, bucket, orphans.NewMemoryQueue(), nil)
	srv := httptest.NewServer(api.NewRouter(svc, idp, nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := New(srv.URL + "/")

	_, err := c.SignUp(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)

	resp, err := c.SignIn(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	require.NotNil(t, resp.Session)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", me.Email)

	for _, title := range []string{"Intro to Biology", "Biology", "Chemistry"} {
		_, err := c.Upload(ctx, Upload{
			Title:       title,
			Tags:        []string{"science", "week1"},
			FileName:    strings.ReplaceAll(title, " ", "_") + ".pdf",
			ContentType: "application/pdf",
			Body:        strings.NewReader("%PDF-1.4 test"),
		})
		require.NoError(t, err)
	}

	notes, err := c.Search(ctx, notequery.Params{Title: "biology", SortField: "relevance"})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Biology", notes[0].FileName)
	assert.Equal(t, []string{"science", "week1"}, notes[0].Tags)

	titles, err := c.Suggestions(ctx, "bio", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Biology", "Intro to Biology"}, titles)

	require.NoError(t, c.Delete(ctx, notes[0].ID))
	notes, err = c.Search(ctx, notequery.Params{})
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	require.NoError(t, c.SignOut(ctx))
	c.SetToken(resp.Session.AccessToken)
	_, err = c.Me(ctx)
	assert.True(t, IsUnauthorized(err), "revoked token: %v", err)
}

func TestClientErrors(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := New(srv.URL)

	_, err := c.Search(ctx, notequery.Params{})
	assert.True(t, IsUnauthorized(err))

	_, err = c.SignIn(ctx, "nobody@example.com", "whatever1")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Equal(t, "invalid email or password", se.Message)
}

func TestUploadRejectedExecutable(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := New(srv.URL)
	_, err := c.SignUp(ctx, "a@b.co", "long enough", "")
	require.NoError(t, err)
	_, err = c.SignIn(ctx, "a@b.co", "long enough")
	require.NoError(t, err)

	_, err = c.Upload(ctx, Upload{Title: "x", FileName: "x.exe", Body: strings.NewReader("MZ")})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
}

func TestSearchQueryEncoding(t *testing.T) {
	v := searchQuery(notequery.Params{
		Title:     "bio",
		From:      "2024-01-01",
		To:        "2024-02-01",
		FileTypes: []string{"PDF", "PNG"},
		SortField: "relevance",
	})
	assert.Equal(t, "bio", v.Get("title"))
	assert.Equal(t, "2024-01-01", v.Get("dateRange[from]"))
	assert.Equal(t, []string{"PDF", "PNG"}, v["fileTypes[]"])
	assert.Empty(t, v.Get("tag"))
	assert.Empty(t, searchQuery(notequery.Params{}).Encode())
}
