// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/lockforge/lockledger/metrics"
)

var metricRequestDuration = metrics.LazyLoadHistogram("api_request_duration_ms", metrics.BucketHTTPReqs)

// New assembles the HTTP handler serving the read API.
func New(ledgerAPI *LedgerAPI, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	ledgerAPI.Mount(router, "/ledger")

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)
	return measured(handler)
}

func measured(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		metricRequestDuration().Observe(time.Since(started).Milliseconds())
	})
}
