package httpserver

import "time"

// ShutdownTimeout controls how long to wait for graceful shutdowns.
var ShutdownTimeout = 10 * time.Second

// UploadTimeout bounds reading a request and writing its response, sized for video uploads.
var UploadTimeout = 5 * time.Minute
