package swcache

import "net/http"

// Generated fallback documents for offline navigation with no cache. The app
// shell variant answers "/" with 200 so the client still boots into its local
// data; everything else gets a 503 with a retry affordance.

const offlineAppHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>bandtrack</title>
</head>
<body>
<main>
<h1>bandtrack</h1>
<p>You are offline. Your workouts are stored on this device and will sync when you reconnect.</p>
<p><a href="/">Reload</a></p>
</main>
</body>
</html>`

const offlineHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Offline</title>
</head>
<body>
<main>
<h1>Offline</h1>
<p>This page is not available offline.</p>
<p><a href="/">Back to the app</a></p>
</main>
</body>
</html>`

func offlineAppPage() *Response {
	return &Response{Status: http.StatusOK, Body: []byte(offlineAppHTML), ContentType: "text/html; charset=utf-8"}
}

func offlinePage() *Response {
	return &Response{Status: http.StatusServiceUnavailable, Body: []byte(offlineHTML), ContentType: "text/html; charset=utf-8"}
}
