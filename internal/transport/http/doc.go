// Package http implements the JSON API of the stock dashboard on top of chi.
//
// Handlers are thin: they parse and validate the request, call the
// dashboard service and render the result. Successful responses use the
// envelope
//
//	{"status": "success", "data": ...}
//
// and every failure goes through errors.ErrorHandler, which answers with an
// RFC 7807 problem document (application/problem+json).
//
// Session routes, mounted under /api/sessions:
//
//	POST   /                                      create a session
//	GET    /{sessionID}                           session summary
//	DELETE /{sessionID}                           end a session
//	POST   /{sessionID}/uploads                   multipart CSV upload
//	POST   /{sessionID}/reload                    rebuild from all sources
//	GET    /{sessionID}/companies                 sorted company identifiers
//	GET    /{sessionID}/view?company=&metric=     chart and stats
//	GET    /{sessionID}/stats?company=            stats table
//	GET    /{sessionID}/summaries?last=           per-company summaries
//	GET    /{sessionID}/export/combined_stocks.csv
//	GET    /{sessionID}/export/combined_stocks.xlsx
//	GET    /{sessionID}/export/view.csv?company=
//
// Exports are rendered into memory before the first byte is written so a
// failure still produces a problem document instead of a truncated file.
package http
