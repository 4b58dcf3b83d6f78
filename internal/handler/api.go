package handler

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/threadlog/internal/attachment"
	"github.com/threadlog/internal/config"
	"github.com/threadlog/internal/logging"
	"github.com/threadlog/internal/realtime"
	"github.com/threadlog/internal/service"
	"github.com/threadlog/internal/storage"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	auth     *service.AuthService
	blogs    *service.BlogService
	comments *service.CommentService
	hub      *realtime.Hub
	logger   *zap.Logger

	blogImageMaxBytes    int64
	commentImageMaxBytes int64
}

// Deps 是构建 API 所需的外部依赖。
type Deps struct {
	DB            *gorm.DB
	BlogBucket    storage.Bucket
	CommentBucket storage.Bucket
	Hub           *realtime.Hub
	// Publisher overrides where services send change events, e.g. a RedisRelay.
	// Defaults to Hub.
	Publisher     realtime.Publisher
	Config        config.AppConfig
	Logger        *zap.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(deps Deps) *API {
	logger := logging.Named(deps.Logger, "http")
	hub := deps.Hub
	if hub == nil {
		hub = realtime.NewHub()
	}
	var publisher realtime.Publisher = hub
	if deps.Publisher != nil {
		publisher = deps.Publisher
	}

	blogImages := attachment.NewManager(deps.BlogBucket, attachment.NewBlogImageStore(deps.DB), deps.Config.BlogImageMaxBytes, deps.Logger)
	commentImages := attachment.NewManager(deps.CommentBucket, attachment.NewCommentImageStore(deps.DB), deps.Config.CommentImageMaxBytes, deps.Logger)

	return &API{
		auth:     service.NewAuthService(deps.DB, deps.Logger),
		blogs:    service.NewBlogService(deps.DB, blogImages, commentImages, publisher, deps.Config.PageSize, deps.Logger),
		comments: service.NewCommentService(deps.DB, commentImages, publisher, deps.Logger),
		hub:      hub,
		logger:   logger,

		blogImageMaxBytes:    deps.Config.BlogImageMaxBytes,
		commentImageMaxBytes: deps.Config.CommentImageMaxBytes,
	}
}
