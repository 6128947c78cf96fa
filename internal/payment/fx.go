package payment

import (
	"github.com/subflowhq/rebill/internal/payment/repository"
	"github.com/subflowhq/rebill/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(repository.Provide),
	fx.Provide(service.Provide),
)
