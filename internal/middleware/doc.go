// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package middleware provides the observability middleware of the HTTP surface.

Both middlewares have the chi signature func(http.Handler) http.Handler and
are mounted on the root router after request id assignment:

	r.Use(api.RequestIDWithLogging())
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)

PrometheusMetrics labels requests with the matched chi route pattern, for
example "/api/v1/sync/changes", so the endpoint label stays bounded no matter
what paths clients hit.

AccessLog writes one structured zerolog line per request. Lines are debug
level unless the handler answered 5xx.
*/
package middleware
