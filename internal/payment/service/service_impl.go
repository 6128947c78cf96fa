package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/subflowhq/rebill/internal/payment/domain"
	"github.com/subflowhq/rebill/internal/timezone"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  paymentdomain.Repository
	genID *snowflake.Node
}

func Provide(db *gorm.DB, log *zap.Logger, repo paymentdomain.Repository, genID *snowflake.Node) paymentdomain.Service {
	return &service{
		db:    db,
		log:   log.Named("payment"),
		repo:  repo,
		genID: genID,
	}
}

func (s *service) CreateFromCheckout(ctx context.Context, req paymentdomain.CheckoutRequest, subscriptionReferenceCode string) (*paymentdomain.PaymentRecord, error) {
	now := time.Now().UTC()
	record := &paymentdomain.PaymentRecord{
		ID:                        s.genID.Generate(),
		UserHash:                  strings.TrimSpace(req.UserHash),
		Bid:                       strings.TrimSpace(req.Bid),
		Fb:                        strings.TrimSpace(req.Fb),
		Plan:                      strings.TrimSpace(req.Plan),
		FirstName:                 req.FirstName,
		LastName:                  req.LastName,
		Address:                   req.Address,
		PostalCode:                req.PostalCode,
		City:                      req.City,
		CountryCode:               strings.ToUpper(strings.TrimSpace(req.CountryCode)),
		Email:                     req.Email,
		Phone:                     req.Phone,
		Locale:                    req.Locale,
		CardHolder:                req.CardHolder,
		CardNumber:                req.CardNumber,
		Expiry:                    req.Expiry,
		CVV:                       req.CVV,
		SubscriptionReferenceCode: subscriptionReferenceCode,
		Timezone:                  timezone.Resolve(req.CountryCode),
		IsRecurringActive:         true,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		return nil, err
	}

	s.log.Info("payment record created",
		zap.String("record_id", record.ID.String()),
		zap.String("plan", record.Plan),
		zap.String("country_code", record.CountryCode),
		zap.String("timezone", record.Timezone),
	)
	return record, nil
}

func (s *service) GetByUserHash(ctx context.Context, userHash string) ([]paymentdomain.PaymentRecord, error) {
	return s.repo.FindByUserHash(ctx, s.db, userHash)
}

func (s *service) Export(ctx context.Context) ([]paymentdomain.PaymentRecord, error) {
	return s.repo.List(ctx, s.db)
}
