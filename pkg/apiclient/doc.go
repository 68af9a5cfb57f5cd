/*
Package apiclient attaches bearer tokens to calls against the business API
and recovers from an expired token without the caller noticing.

Transport is an http.RoundTripper. For each request it takes the token from
its TokenCache (asking the TokenSource when the cache is empty), sends the
request, and on a 401 refreshes once and replays the request once:

	Sent -> Unauthorized -> Refreshing -> Retried -> Done | Failed

A 401 on the replay, or a failed refresh, is handed back to the caller as the
downstream sent it. Any other status is never retried.

Request bodies are read into memory up front so the replay sends the same
bytes.
*/
package apiclient
