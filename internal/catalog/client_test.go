package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err, "load fixture %s", name)
	return data
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL:           server.URL + "/v0",
		RequestsPerSecond: 1000,
		Burst:             1000,
		Timeout:           2 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestClient_GetCard(t *testing.T) {
	fixture := loadFixture(t, "card_response.json")

	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write(fixture)
	})

	card, err := client.GetCard(context.Background(), "triss-mistress-of-magic")
	require.NoError(t, err)

	assert.Equal(t, "/v0/cards/triss-mistress-of-magic", gotPath)
	assert.Equal(t, "triss-mistress-of-magic", card.IngameID)
	assert.Equal(t, "Triss: Mistress of Magic", card.Name)
	assert.Equal(t, "Northern Realms", card.Faction)
	assert.Equal(t, "0.9.6", card.Patch)
	assert.Equal(t, "Legendary", card.Rarity)
	assert.Equal(t, "Gold", card.Group)
	assert.Equal(t, 8, card.Strength)
}

func TestClient_GetCard_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
	}{
		{name: "not found", statusCode: http.StatusNotFound, body: `{"detail":"Not found."}`, wantErr: ErrNotFound},
		{name: "rate limited", statusCode: http.StatusTooManyRequests, wantErr: ErrRateLimited},
		{name: "bad request", statusCode: http.StatusBadRequest, wantErr: ErrBadRequest},
		{name: "server error", statusCode: http.StatusBadGateway, wantErr: ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				io.WriteString(w, tt.body)
			})

			_, err := client.GetCard(context.Background(), "some-card")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.statusCode, apiErr.StatusCode)
			assert.Equal(t, tt.body, apiErr.Body)
		})
	}
}

func TestClient_GetCard_RejectsBadID(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	})

	for _, id := range []string{"", "  ", "a/b", ".", "..", "../leaders", "a#b"} {
		_, err := client.GetCard(context.Background(), id)
		assert.ErrorIs(t, err, ErrBadRequest, "id %q", id)
	}
	assert.Zero(t, calls.Load())
}

func TestClient_GetCard_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "{not json")
	})

	_, err := client.GetCard(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestClient_Lists(t *testing.T) {
	fixture := loadFixture(t, "list_response.json")

	tests := []struct {
		name     string
		call     func(*Client) ([]CardStub, error)
		wantPath string
		wantQS   string
	}{
		{
			name:     "all cards uses default page",
			call:     func(c *Client) ([]CardStub, error) { return c.ListCards(context.Background(), Page{}) },
			wantPath: "/v0/cards",
			wantQS:   "limit=200&offset=0",
		},
		{
			name:     "leaders",
			call:     func(c *Client) ([]CardStub, error) { return c.ListLeaders(context.Background(), DefaultPage) },
			wantPath: "/v0/cards/leaders",
			wantQS:   "limit=200&offset=0",
		},
		{
			name: "faction slug",
			call: func(c *Client) ([]CardStub, error) {
				return c.ListByFaction(context.Background(), "northern realms", Page{Limit: 20, Offset: 40})
			},
			wantPath: "/v0/cards/factions/northern-realms",
			wantQS:   "limit=20&offset=40",
		},
		{
			name: "rarity lowercased",
			call: func(c *Client) ([]CardStub, error) {
				return c.ListByRarity(context.Background(), "Legendary", Page{Limit: 10000})
			},
			wantPath: "/v0/cards/rarities/legendary",
			wantQS:   "limit=500&offset=0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotQS string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath, gotQS = r.URL.Path, r.URL.RawQuery
				w.Write(fixture)
			})

			stubs, err := tt.call(client)
			require.NoError(t, err)

			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, tt.wantQS, gotQS)
			require.Len(t, stubs, 3)
			assert.Equal(t, "Geralt of Rivia", stubs[1].Name)
			assert.Equal(t, "geralt-of-rivia", stubs[1].ID())
		})
	}
}

func TestClient_ListEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"count":0,"results":null}`)
	})

	stubs, err := client.ListCards(context.Background(), Page{})
	require.NoError(t, err)
	assert.NotNil(t, stubs)
	assert.Empty(t, stubs)
}

func TestClient_ContextCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetCard(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not-a-url"}, nil)
	assert.Error(t, err)
}

func TestIDFromAPIURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://api.gwentapi.com/v0/cards/geralt-of-rivia", "geralt-of-rivia"},
		{"https://api.gwentapi.com/v0/cards/geralt-of-rivia/", "geralt-of-rivia"},
		{"https://api.gwentapi.com/v0/cards/geralt-of-rivia?lang=en", "geralt-of-rivia"},
		{"https://api.gwentapi.com/v0/cards/caf%C3%A9", "café"},
		{"plain-id", "plain-id"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IDFromAPIURL(tt.in))
		})
	}
}
