package common

import (
	"github.com/futig/proposal-backend/internal/config"
	pkgHTTP "github.com/futig/proposal-backend/pkg/http"
	"go.uber.org/zap"
)

// NewBaseConnector builds the outbound connector every integration shares.
// Extra options apply after the config derived ones.
func NewBaseConnector(cfg config.HTTPClientConfig, logger *zap.Logger, extra ...pkgHTTP.HttpOpts) *pkgHTTP.Connector {
	opts := []pkgHTTP.HttpOpts{
		pkgHTTP.WithRequestTimeout(cfg.RequestTimeout),
		pkgHTTP.WithConnClientTimeout(cfg.ConnTimeout),
		pkgHTTP.WithClientKeepAlive(cfg.KeepAlive),
		pkgHTTP.WithIdleConnTimeout(cfg.IdleConnTimeout),
		pkgHTTP.WithResponseHeaderTimeout(cfg.ResponseHeaderTimeout),
		pkgHTTP.WithRequestLogging(),
		pkgHTTP.WithAuthToken(cfg.Token),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, pkgHTTP.WithDefaultHeader("User-Agent", cfg.UserAgent))
	}

	return pkgHTTP.NewConnector(&pkgHTTP.ConnectorConfig{
		Logger:  logger.Named("http").With(zap.String("base_url", cfg.Url)),
		BaseURL: cfg.Url,
	}, append(opts, extra...)...)
}
