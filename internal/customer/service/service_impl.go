package service

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kanakku/internal/clock"
	"github.com/smallbiznis/kanakku/internal/customer/domain"
	"github.com/smallbiznis/kanakku/internal/observability/logger"
	taxdomain "github.com/smallbiznis/kanakku/internal/tax/domain"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var phonePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}

	email := strings.TrimSpace(req.Email)
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return domain.Customer{}, domain.ErrInvalidEmail
		}
		email = addr.Address
	}

	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return domain.Customer{}, err
	}

	gstin := taxdomain.NormalizeGSTIN(req.GSTIN)
	if err := taxdomain.ValidateGSTIN(gstin); err != nil {
		return domain.Customer{}, domain.ErrInvalidGSTIN
	}
	stateCode, err := resolveStateCode(gstin, req.StateCode)
	if err != nil {
		return domain.Customer{}, err
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	now := s.clock.Now().UTC()
	customer := domain.Customer{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		GSTIN:     gstin,
		StateCode: stateCode,
		Address:   strings.TrimSpace(req.Address),
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return domain.Customer{}, err
	}

	logger.WithContext(ctx, s.log).Info("customer created",
		zap.String("customer_id", customer.ID.String()),
		zap.Bool("registered", customer.IsRegistered()),
		zap.String("gstin", customer.GSTIN),
	)
	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	filter := domain.ListCustomerFilter{
		Name:        strings.ToLower(strings.TrimSpace(req.Name)),
		Email:       strings.TrimSpace(req.Email),
		GSTIN:       taxdomain.NormalizeGSTIN(req.GSTIN),
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(customer *domain.Customer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        customer.ID.String(),
			CreatedAt: customer.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	resp := domain.ListCustomerResponse{Customers: customers}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetCustomerRequest) (domain.Customer, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// NormalizePhone strips separators and the +91 or 0 trunk prefix from an
// Indian mobile number. Empty input is allowed.
func NormalizePhone(value string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(value))
	if cleaned == "" {
		return "", nil
	}
	switch {
	case strings.HasPrefix(cleaned, "+91"):
		cleaned = cleaned[3:]
	case len(cleaned) == 12 && strings.HasPrefix(cleaned, "91"):
		cleaned = cleaned[2:]
	case len(cleaned) == 11 && strings.HasPrefix(cleaned, "0"):
		cleaned = cleaned[1:]
	}
	if !phonePattern.MatchString(cleaned) {
		return "", domain.ErrInvalidPhone
	}
	return cleaned, nil
}

func resolveStateCode(gstin, stateCode string) (string, error) {
	stateCode = strings.TrimSpace(stateCode)
	if stateCode != "" && !taxdomain.IsValidStateCode(stateCode) {
		return "", domain.ErrInvalidStateCode
	}
	if gstin == "" {
		return stateCode, nil
	}
	fromGSTIN := gstin[:2]
	if stateCode == "" {
		return fromGSTIN, nil
	}
	if stateCode != fromGSTIN {
		return "", domain.ErrStateMismatch
	}
	return stateCode, nil
}
