// Package services defines the [Source] and [Destination] interfaces consumed by the migration engine and implements
// them for Asana and YouTrack.
//
// # Source: Asana
//
// [AsanaService] talks to the Asana REST API 1.0 with a personal access token, sent as a bearer token through
// [oauth2.StaticTokenSource]. Responses are wrapped in a {"data": ..., "next_page": ...} envelope; list endpoints are
// followed page by page (limit=100) until next_page is null.
//
// The Raw variants ([AsanaService.TaskRaw], [AsanaService.TaskStoriesRaw], [AsanaService.StoryRaw]) return the
// unwrapped data payload verbatim so the cache can persist exactly what the API returned.
//
// # Destination: YouTrack
//
// [YouTrackService] talks to the YouTrack legacy REST API. It authenticates either with login + password through
// POST /rest/user/login (the session cookie is kept in a cookie jar) or with a permanent token sent as a bearer token.
// Reads use JSON; bulk imports of users and issues send XML documents and parse the importResult reply.
//
// Existence queries return (nil, nil) on 404 and propagate every other failure.
//
// # Transport
//
// Both clients share one transport that applies, per request:
//   - a timeout (default 30s)
//   - a rate limit ([golang.org/x/time/rate], Asana only)
//   - exponential backoff retry ([github.com/cenkalti/backoff/v4]) for network errors, 429 and 5xx
//
// # Error Handling
//
// Non-2xx responses are returned as [*APIError], which unwraps to the shared sentinels:
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrAuthFailed] : 401, 403
//   - [shared.ErrServiceUnavailable] : 429, 5xx
//   - [shared.ErrAPIRequest] : any other status
//
// Rejected import items are reported as [shared.ErrImportRejected].
package services
