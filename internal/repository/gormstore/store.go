package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/utils"
)

// Store is the Postgres-backed implementation of repository.AuctionStore.
// The auction row is the per-auction serialization point: CommitBid and
// TransitionStatus read it with a row lock inside one transaction, so two
// concurrent commits can never both act on the same stale price.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateAuction(ctx context.Context, a *model.Auction) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return storeErr(fmt.Errorf("create auction %s: %w", a.ID, err))
	}
	return nil
}

func (s *Store) GetAuction(ctx context.Context, id string) (model.Auction, error) {
	var a model.Auction
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Auction{}, fmt.Errorf("get auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
		}
		return model.Auction{}, storeErr(fmt.Errorf("get auction %s: %w", id, err))
	}
	return a, nil
}

func (s *Store) ListAuctions(ctx context.Context, params repository.ListAuctionsParams) ([]model.Auction, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Auction{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.SellerID != "" {
		query = query.Where("seller_id = ?", params.SellerID)
	}
	if params.Search != "" {
		needle := "%" + strings.TrimSpace(params.Search) + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", needle, needle)
	}
	if params.MinPrice != nil {
		query = query.Where("current_price >= ?", *params.MinPrice)
	}
	if params.MaxPrice != nil {
		query = query.Where("current_price <= ?", *params.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeErr(err)
	}

	sortBy := params.SortBy
	switch sortBy {
	case "current_price", "end_time", "created_at":
	default:
		sortBy = "created_at"
	}
	dir := "DESC"
	if params.Asc {
		dir = "ASC"
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 12
	}

	var items []model.Auction
	err := query.Order(sortBy + " " + dir).Limit(limit).Offset(params.Offset).Find(&items).Error
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return items, total, nil
}

// DeleteAuction removes a listing. Auctions with committed bids are never
// deleted; sellers must cancel instead.
func (s *Store) DeleteAuction(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a model.Auction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("delete auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
			}
			return err
		}
		if a.TotalBids > 0 {
			return fmt.Errorf("delete auction %s: %w", id, auctionerrors.ErrAuctionHasBids)
		}
		return tx.Delete(&model.Auction{}, "id = ?", id).Error
	})
	return storeErr(err)
}

func (s *Store) IncrementViews(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&model.Auction{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1"))
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("increment views for auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
	}
	return nil
}

// CommitBid performs the bid commit as a single transaction: re-read the
// auction under a row lock, re-run the check against that fresh row, insert
// the winning bid, flip the previous winner, and advance the aggregates.
// Any check failure aborts the whole transaction; partial writes are never
// observable.
func (s *Store) CommitBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal, check repository.BidCheck) (repository.CommitBidResult, error) {
	var res repository.CommitBidResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a model.Auction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", auctionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("commit bid for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
			}
			return err
		}
		if check != nil {
			if err := check(a); err != nil {
				return err
			}
		}

		var prev model.Bid
		hasPrev := true
		err := tx.Where("auction_id = ? AND is_winning = ?", auctionID, true).First(&prev).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			hasPrev = false
		}

		now := time.Now().UTC()
		bid := model.Bid{
			ID:        utils.GenerateID(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			IsWinning: true,
			CreatedAt: now,
		}
		if err := tx.Create(&bid).Error; err != nil {
			return err
		}
		if hasPrev {
			if err := tx.Model(&model.Bid{}).Where("id = ?", prev.ID).Update("is_winning", false).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&model.Auction{}).Where("id = ?", auctionID).Updates(map[string]any{
			"current_price": amount,
			"total_bids":    gorm.Expr("total_bids + 1"),
			"updated_at":    now,
		}).Error; err != nil {
			return err
		}

		a.CurrentPrice = amount
		a.TotalBids++
		a.UpdatedAt = now
		res = repository.CommitBidResult{Bid: bid, Auction: a}
		if hasPrev && prev.BidderID != bidderID {
			res.OutbidUserID = prev.BidderID
		}
		return nil
	})
	if err != nil {
		return repository.CommitBidResult{}, storeErr(err)
	}
	return res, nil
}

// TransitionStatus moves the auction to the next status under a row lock.
// ACTIVE stamps start_time; a manual early ENDED closes end_time to now
// while a deadline expiry keeps the original end_time.
func (s *Store) TransitionStatus(ctx context.Context, auctionID string, next model.AuctionStatus, check repository.TransitionCheck) (model.Auction, error) {
	var out model.Auction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a model.Auction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", auctionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("transition auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
			}
			return err
		}
		if check != nil {
			if err := check(a); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":     next,
			"updated_at": now,
		}
		a.Status = next
		a.UpdatedAt = now
		switch next {
		case model.StatusActive:
			updates["start_time"] = now
			a.StartTime = &now
		case model.StatusEnded:
			if a.EndTime.After(now) {
				updates["end_time"] = now
				a.EndTime = now
			}
		}
		if err := tx.Model(&model.Auction{}).Where("id = ?", auctionID).Updates(updates).Error; err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return model.Auction{}, storeErr(err)
	}
	return out, nil
}

func (s *Store) ListBids(ctx context.Context, auctionID string, limit, offset int) ([]model.Bid, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Bid{}).Where("auction_id = ?", auctionID)
	return s.listBids(query, limit, offset)
}

func (s *Store) ListBidsByBidder(ctx context.Context, bidderID string, limit, offset int) ([]model.Bid, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Bid{}).Where("bidder_id = ?", bidderID)
	return s.listBids(query, limit, offset)
}

func (s *Store) listBids(query *gorm.DB, limit, offset int) ([]model.Bid, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeErr(err)
	}
	if limit <= 0 {
		limit = 20
	}
	var bids []model.Bid
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&bids).Error; err != nil {
		return nil, 0, storeErr(err)
	}
	return bids, total, nil
}

func (s *Store) GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error) {
	var bid model.Bid
	err := s.db.WithContext(ctx).
		Where("auction_id = ? AND is_winning = ?", auctionID, true).
		First(&bid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
		}
		return model.Bid{}, storeErr(err)
	}
	return bid, nil
}

func (s *Store) ListDistinctBidders(ctx context.Context, auctionID string) ([]string, error) {
	var bidders []string
	err := s.db.WithContext(ctx).Model(&model.Bid{}).
		Distinct("bidder_id").
		Where("auction_id = ?", auctionID).
		Pluck("bidder_id", &bidders).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return bidders, nil
}

func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Auction, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []model.Auction
	err := s.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", model.StatusActive, now).
		Order("end_time ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = utils.GenerateID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return storeErr(fmt.Errorf("create notification for user %s: %w", n.UserID, err))
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	var items []model.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

// storeErr keeps domain errors intact and folds driver-level failures into
// the retryable taxonomy: serialization/deadlock losers surface as a
// conflict, everything else as store-unavailable.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	for _, domain := range []error{
		auctionerrors.ErrAuctionNotFound,
		auctionerrors.ErrNoBids,
		auctionerrors.ErrAuctionHasBids,
		auctionerrors.ErrAuctionNotActive,
		auctionerrors.ErrAuctionExpired,
		auctionerrors.ErrSelfBidForbidden,
		auctionerrors.ErrBidTooLow,
		auctionerrors.ErrForbidden,
		auctionerrors.ErrInvalidState,
		auctionerrors.ErrConflict,
	} {
		if errors.Is(err, domain) {
			return err
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLSTATE 40001") || strings.Contains(msg, "SQLSTATE 40P01") {
		return fmt.Errorf("%w: %v", auctionerrors.ErrConflict, err)
	}
	return fmt.Errorf("%w: %v", auctionerrors.ErrStoreUnavailable, err)
}
