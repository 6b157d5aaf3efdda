package service

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/smallbiznis/kanakku/internal/clock"
	"github.com/smallbiznis/kanakku/internal/company/domain"
	"github.com/smallbiznis/kanakku/internal/observability/logger"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	phonePattern = regexp.MustCompile(`^(\+91|0)?[6-9][0-9]{9}$`)
	ifscPattern  = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("company.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Get(ctx context.Context) (domain.Company, error) {
	company, err := s.repo.Get(ctx, s.db)
	if err != nil {
		return domain.Company{}, err
	}
	if company == nil {
		return domain.Company{StateCode: taxdomain.DefaultStateCode}, nil
	}
	if company.StateCode == "" {
		company.StateCode = taxdomain.DefaultStateCode
	}
	return *company, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (domain.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Company{}, domain.ErrInvalidName
	}

	gstin := taxdomain.NormalizeGSTIN(req.GSTIN)
	if err := taxdomain.ValidateGSTIN(gstin); err != nil {
		return domain.Company{}, domain.ErrInvalidGSTIN
	}
	stateCode, err := ResolveStateCode(gstin, req.StateCode)
	if err != nil {
		return domain.Company{}, err
	}
	if stateCode == "" {
		stateCode = taxdomain.DefaultStateCode
	}

	phone := strings.ReplaceAll(strings.TrimSpace(req.Phone), " ", "")
	if phone != "" && !phonePattern.MatchString(phone) {
		return domain.Company{}, domain.ErrInvalidPhone
	}
	email, err := optionalEmail(req.Email)
	if err != nil {
		return domain.Company{}, err
	}
	recipient, err := optionalEmail(req.EmailRecipient)
	if err != nil {
		return domain.Company{}, err
	}
	ifsc := strings.ToUpper(strings.TrimSpace(req.BankIFSC))
	if ifsc != "" && !ifscPattern.MatchString(ifsc) {
		return domain.Company{}, domain.ErrInvalidIFSC
	}

	company := domain.Company{
		ID:                domain.SingletonID,
		Name:              name,
		AddressLine1:      strings.TrimSpace(req.AddressLine1),
		AddressLine2:      strings.TrimSpace(req.AddressLine2),
		City:              strings.TrimSpace(req.City),
		Pincode:           strings.TrimSpace(req.Pincode),
		GSTIN:             gstin,
		StateCode:         stateCode,
		Phone:             phone,
		Email:             email,
		BankName:          strings.TrimSpace(req.BankName),
		BankAccount:       strings.TrimSpace(req.BankAccount),
		BankIFSC:          ifsc,
		BankBranch:        strings.TrimSpace(req.BankBranch),
		UPIID:             strings.TrimSpace(req.UPIID),
		AutoEmailInvoices: req.AutoEmailInvoices,
		EmailRecipient:    recipient,
		UpdatedAt:         s.clock.Now().UTC().Truncate(time.Second),
	}
	if err := s.repo.Upsert(ctx, s.db, &company); err != nil {
		return domain.Company{}, err
	}

	logger.WithContext(ctx, s.log).Info("company settings updated", zap.String("state_code", stateCode))
	return company, nil
}

// ResolveStateCode derives the state from the GSTIN when the caller gave
// none and rejects a GSTIN registered in a different state.
func ResolveStateCode(gstin, stateCode string) (string, error) {
	stateCode = strings.TrimSpace(stateCode)
	if stateCode != "" && !taxdomain.IsValidStateCode(stateCode) {
		return "", domain.ErrInvalidStateCode
	}
	if gstin == "" {
		return stateCode, nil
	}
	fromGSTIN, err := taxdomain.StateCodeFromGSTIN(gstin)
	if err != nil {
		return "", domain.ErrInvalidGSTIN
	}
	if stateCode == "" {
		return fromGSTIN, nil
	}
	if stateCode != fromGSTIN {
		return "", domain.ErrStateMismatch
	}
	return stateCode, nil
}

func optionalEmail(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return "", domain.ErrInvalidEmail
	}
	return addr.Address, nil
}
