package rest

const (
	// api
	RouteApiV1 = "/api/v1"

	// public upload and share surface
	RouteUpload   = "/api/upload"
	RouteShare    = "/share/:public_id"
	RouteDownload = "/action/download/:file_id"

	RouteContainers = RouteApiV1 + "/containers"
	RouteContainer  = RouteContainers + "/:public_id"

	// auth
	RouteAuth  = RouteApiV1 + "/auth"
	RouteLogin = RouteAuth + "/login"

	// admin
	RouteAdmin = RouteApiV1 + "/admin"
	RouteSweep = RouteAdmin + "/sweep"

	// ops
	RouteHealth  = RouteApiV1 + "/healthz"
	RouteMetrics = RouteApiV1 + "/metrics"
)
