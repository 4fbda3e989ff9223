package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aihub/rag-go/app/controllers"
	"github.com/aihub/rag-go/app/middleware"
)

// Init registers all routes. Must be called after bootstrap.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")

	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)

	// 检索API
	web.Router("/api/ingest", &controllers.IngestController{}, "post:Ingest")
	web.Router("/api/query", &controllers.QueryController{}, "post:Query")

	// Prometheus指标
	web.Handler("/metrics", promhttp.Handler())
}
