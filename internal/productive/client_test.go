package productive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/v2", "secret", "4242", zaptest.NewLogger(t), srv.Client())
}

func TestFetchSendsCredentials(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		fmt.Fprint(w, `{"data":[]}`)
	})

	raw, err := c.Fetch(context.Background(), "/projects/", map[string]string{"filter[status]": "1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(raw))

	require.NotNil(t, got)
	assert.Equal(t, "/api/v2/projects", got.URL.Path)
	assert.Equal(t, "1", got.URL.Query().Get("filter[status]"))
	assert.Equal(t, "secret", got.Header.Get("X-Auth-Token"))
	assert.Equal(t, "4242", got.Header.Get("X-Organization-Id"))
	assert.Equal(t, "application/vnd.api+json", got.Header.Get("Content-Type"))
}

func TestFetchErrors(t *testing.T) {
	t.Run("json api error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"errors":[{"status":"401","title":"Unauthorized","detail":"invalid token"}]}`)
		})

		_, err := c.Fetch(context.Background(), "projects", nil)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Equal(t, "Unauthorized: invalid token", apiErr.Message)
	})

	t.Run("plain body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, "slow down")
		})

		_, err := c.Fetch(context.Background(), "projects", nil)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
		assert.Equal(t, "slow down", apiErr.Message)
	})

	t.Run("invalid json", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>")
		})
		_, err := c.Fetch(context.Background(), "projects", nil)
		assert.Error(t, err)
	})

	t.Run("missing credentials", func(t *testing.T) {
		c := New("", "", "", nil, nil)
		_, err := c.Fetch(context.Background(), "projects", nil)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestSearchMapsRecords(t *testing.T) {
	tests := []struct {
		name  string
		kind  cache.Kind
		body  string
		want  cache.Record
		owner string
		param string
	}{
		{
			name: "project",
			kind: cache.KindProject,
			body: `{"data":[{"id":"1","type":"projects","attributes":{"name":"Website","project_number":"PRJ-1"},
				"relationships":{"company":{"data":{"id":"9","type":"companies"}}}}]}`,
			want:  cache.Record{ID: "1", Kind: cache.KindProject, Label: "Website", SearchFields: []string{"PRJ-1"}, OwnerID: "9"},
			owner: "9",
			param: "filter[company_id]",
		},
		{
			name: "person",
			kind: cache.KindPerson,
			body: `{"data":[{"id":"500521","type":"people","attributes":{"first_name":"John","last_name":"Doe","email":"john@example.com"}}]}`,
			want: cache.Record{ID: "500521", Kind: cache.KindPerson, Label: "John Doe", SearchFields: []string{"john@example.com"}},
		},
		{
			name: "service under deal",
			kind: cache.KindService,
			body: `{"data":[{"id":"3","type":"services","attributes":{"name":"Design"},
				"relationships":{"deal":{"data":{"id":"77","type":"deals"}}}}]}`,
			want:  cache.Record{ID: "3", Kind: cache.KindService, Label: "Design", OwnerID: "77"},
			owner: "12",
			param: "filter[project_id]",
		},
		{
			name: "company",
			kind: cache.KindCompany,
			body: `{"data":[{"id":"4","type":"companies","attributes":{"name":"Acme","company_code":"ACM"}}]}`,
			want: cache.Record{ID: "4", Kind: cache.KindCompany, Label: "Acme", SearchFields: []string{"ACM"}},
		},
		{
			name: "task",
			kind: cache.KindTask,
			body: `{"data":[{"id":"5","type":"tasks","attributes":{"title":"Fix header"},
				"relationships":{"project":{"data":{"id":"1","type":"projects"}}}}]}`,
			want: cache.Record{ID: "5", Kind: cache.KindTask, Label: "Fix header", OwnerID: "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v2/"+tt.kind.Endpoint(), r.URL.Path)
				assert.Equal(t, "needle", r.URL.Query().Get("filter[query]"))
				if tt.param != "" {
					assert.Equal(t, tt.owner, r.URL.Query().Get(tt.param))
				}
				fmt.Fprint(w, tt.body)
			})

			records, err := c.Search(context.Background(), tt.kind, " needle ", tt.owner)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.want, records[0])
		})
	}
}

func TestSearchIgnoresOwnerForUnscopedKinds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		for key := range r.URL.Query() {
			assert.NotContains(t, key, "_id]")
		}
		fmt.Fprint(w, `{"data":[]}`)
	})

	records, err := c.Search(context.Background(), cache.KindPerson, "jane", "12")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListPages(t *testing.T) {
	var (
		mu    sync.Mutex
		pages []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page[number]")
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()
		n, _ := strconv.Atoi(page)
		fmt.Fprintf(w, `{"data":[{"id":"%d","type":"companies","attributes":{"name":"Company %d"}}],"meta":{"total_pages":3}}`, n, n)
	})

	records, err := c.List(context.Background(), cache.KindCompany)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Company 3", records[2].Label)
	assert.Equal(t, []string{"1", "2", "3"}, pages)
}

func TestListUnknownKind(t *testing.T) {
	c := New("", "token", "1", nil, nil)
	_, err := c.List(context.Background(), cache.Kind("deal"))
	assert.ErrorIs(t, err, cache.ErrUnknownKind)
}
