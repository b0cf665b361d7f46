package providers

import (
	"github.com/samber/do/v2"

	"github.com/booksswap/booksswap-server/internal/auth"
	"github.com/booksswap/booksswap-server/internal/badge"
	"github.com/booksswap/booksswap-server/internal/billing"
	"github.com/booksswap/booksswap-server/internal/logger"
	"github.com/booksswap/booksswap-server/internal/metrics"
	"github.com/booksswap/booksswap-server/internal/service"
	"github.com/booksswap/booksswap-server/internal/validation"
)

// ProvideBillingGate provides the subscription entitlement gate.
func ProvideBillingGate(i do.Injector) (*billing.Gate, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	return billing.NewGate(storeHandle.Store), nil
}

// ProvideBadgeAwarder provides the badge awarder.
func ProvideBadgeAwarder(i do.Injector) (*badge.Awarder, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return badge.NewAwarder(storeHandle.Store, m, log.Component("badge")), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	v := do.MustInvoke[*validation.Validator](i)
	dispatcher := do.MustInvoke[*DispatcherHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, v, dispatcher.Dispatcher, log.Component("auth")), nil
}

// ProvideUserService provides the profile service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserService(storeHandle.Store, v, log.Component("users")), nil
}

// ProvideBookService provides the listing service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	gate := do.MustInvoke[*billing.Gate](i)
	awarder := do.MustInvoke[*badge.Awarder](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(
		storeHandle.Store,
		gate,
		awarder,
		indexHandle.BookIndex,
		v,
		log.Component("books"),
	), nil
}

// ProvideSwapService provides the swap state machine.
func ProvideSwapService(i do.Injector) (*service.SwapService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	gate := do.MustInvoke[*billing.Gate](i)
	awarder := do.MustInvoke[*badge.Awarder](i)
	dispatcher := do.MustInvoke[*DispatcherHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSwapService(
		storeHandle.Store,
		gate,
		awarder,
		dispatcher.Dispatcher,
		v,
		log.Component("swaps"),
		service.SwapServiceConfig{
			Events:   sseHandle.Manager,
			Recorder: m,
		},
	), nil
}

// ProvideCommunityService provides leaderboards and dashboards.
func ProvideCommunityService(i do.Injector) (*service.CommunityService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCommunityService(storeHandle.Store, log.Component("community")), nil
}

// ProvideBillingService provides subscription management.
func ProvideBillingService(i do.Injector) (*service.BillingService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	provider := do.MustInvoke[billing.Provider](i)
	dispatcher := do.MustInvoke[*DispatcherHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBillingService(storeHandle.Store, provider, dispatcher.Dispatcher, m, log.Component("billing")), nil
}
