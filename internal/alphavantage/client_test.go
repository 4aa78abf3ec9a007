package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
)

func TestClient_Fetch(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantPrice float64
		wantKind  pricesource.Kind
	}{
		{
			name:      "parses global quote price",
			status:    http.StatusOK,
			body:      `{"Global Quote": {"01. symbol": "IBM", "05. price": "221.4800"}}`,
			wantPrice: 221.48,
		},
		{
			name:     "throttle note is rate limited",
			status:   http.StatusOK,
			body:     `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`,
			wantKind: pricesource.KindRateLimited,
		},
		{
			name:     "empty quote is not found",
			status:   http.StatusOK,
			body:     `{"Global Quote": {}}`,
			wantKind: pricesource.KindNotFound,
		},
		{
			name:     "error message is not found",
			status:   http.StatusOK,
			body:     `{"Error Message": "Invalid API call."}`,
			wantKind: pricesource.KindNotFound,
		},
		{
			name:     "server error is unknown",
			status:   http.StatusInternalServerError,
			body:     ``,
			wantKind: pricesource.KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
				assert.Equal(t, "IBM", r.URL.Query().Get("symbol"))
				assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("demo", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
			obs, err := client.Fetch(context.Background(), "IBM")

			if tt.wantPrice > 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.wantPrice, obs.Price)
				assert.Equal(t, SourceName, obs.Source)
				assert.False(t, obs.Timestamp.IsZero())
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, pricesource.KindOf(err))
		})
	}
}
