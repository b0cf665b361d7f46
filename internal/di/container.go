// Package di provides dependency injection configuration for the BooksSwap server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/booksswap/booksswap-server/internal/auth"
	"github.com/booksswap/booksswap-server/internal/badge"
	"github.com/booksswap/booksswap-server/internal/billing"
	"github.com/booksswap/booksswap-server/internal/config"
	"github.com/booksswap/booksswap-server/internal/di/providers"
	"github.com/booksswap/booksswap-server/internal/logger"
	"github.com/booksswap/booksswap-server/internal/metrics"
	"github.com/booksswap/booksswap-server/internal/notify"
	"github.com/booksswap/booksswap-server/internal/service"
	"github.com/booksswap/booksswap-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideMetrics)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database and search
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Auth
	do.Provide(injector, providers.ProvideTokenService)

	// Notifications and billing
	do.Provide(injector, providers.ProvideEmailSender)
	do.Provide(injector, providers.ProvideDispatcher)
	do.Provide(injector, providers.ProvideBillingProvider)
	do.Provide(injector, providers.ProvideBillingGate)
	do.Provide(injector, providers.ProvideBadgeAwarder)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideBookService)
	do.Provide(injector, providers.ProvideSwapService)
	do.Provide(injector, providers.ProvideCommunityService)
	do.Provide(injector, providers.ProvideBillingService)

	// Workers
	do.Provide(injector, providers.ProvideScheduler)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)
	_ = do.MustInvoke[notify.EmailSender](injector)
	_ = do.MustInvoke[*providers.DispatcherHandle](injector)
	_ = do.MustInvoke[billing.Provider](injector)
	_ = do.MustInvoke[*billing.Gate](injector)
	_ = do.MustInvoke[*badge.Awarder](injector)

	// Business services
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.UserService](injector)
	_ = do.MustInvoke[*service.BookService](injector)
	_ = do.MustInvoke[*service.SwapService](injector)
	_ = do.MustInvoke[*service.CommunityService](injector)
	_ = do.MustInvoke[*service.BillingService](injector)

	// Workers
	if _, err := do.Invoke[*providers.SchedulerHandle](injector); err != nil {
		return err
	}

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	// Repopulate the search index if it was just created
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
