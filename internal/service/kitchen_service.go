package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"tea_refill/internal/domain"
	"tea_refill/internal/idgen"
	"tea_refill/internal/repository"

	"github.com/go-playground/validator/v10"
)

type KitchenService struct {
	store    repository.Store
	validate *validator.Validate
}

func NewKitchenService(store repository.Store) *KitchenService {
	return &KitchenService{store: store, validate: newValidator()}
}

func (s *KitchenService) findKitchen(ctx context.Context, tx repository.Store, kitchenUserID string) error {
	if _, err := tx.Kitchens().FindByUserID(ctx, kitchenUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrKitchenNotFound, kitchenUserID)
		}
		return fmt.Errorf("KitchenService: %w", err)
	}
	return nil
}

// AddMember registers a kitchen staff member under the next USERnnn uid.
func (s *KitchenService) AddMember(ctx context.Context, kitchenUserID string, dto domain.AddKitchenMemberDTO) (*domain.KitchenMember, error) {
	if err := validateInput(s.validate, dto); err != nil {
		return nil, err
	}

	var member *domain.KitchenMember
	var err error
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		err = s.store.WithTx(ctx, func(tx repository.Store) error {
			if err := s.findKitchen(ctx, tx, kitchenUserID); err != nil {
				return err
			}
			seq := idgen.LastIDSequence{Format: idgen.MemberUIDs, Last: tx.Kitchens().LastMemberUID}
			uid, err := seq.Next(ctx)
			if err != nil {
				return err
			}
			member = &domain.KitchenMember{UID: uid, KitchenUserID: kitchenUserID, Name: dto.Name, Mobile: dto.Mobile}
			return tx.Kitchens().CreateMember(ctx, member)
		})
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			break
		}
		log.Printf("KitchenService: member uid collision (attempt %d/%d): %v", attempt, maxCreateAttempts, err)
	}
	if err != nil {
		return nil, fmt.Errorf("KitchenService.AddMember: %w", err)
	}
	log.Printf("KitchenService: member %s added to kitchen %s", member.UID, kitchenUserID)
	return member, nil
}

// RegisterCanister issues the kitchen's next <KITCHEN>_CAN_n scan id.
func (s *KitchenService) RegisterCanister(ctx context.Context, kitchenUserID string) (*domain.Canister, error) {
	var canister *domain.Canister
	var err error
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		err = s.store.WithTx(ctx, func(tx repository.Store) error {
			if err := s.findKitchen(ctx, tx, kitchenUserID); err != nil {
				return err
			}
			seq := idgen.LastIDSequence{
				Format: idgen.CanisterScanIDs(kitchenUserID),
				Last: func(ctx context.Context) (string, error) {
					return tx.Kitchens().LastCanisterScanID(ctx, kitchenUserID)
				},
			}
			scanID, err := seq.Next(ctx)
			if err != nil {
				return err
			}
			canister = &domain.Canister{ScanID: scanID, KitchenUserID: kitchenUserID}
			return tx.Kitchens().CreateCanister(ctx, canister)
		})
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			break
		}
		log.Printf("KitchenService: canister id collision (attempt %d/%d): %v", attempt, maxCreateAttempts, err)
	}
	if err != nil {
		return nil, fmt.Errorf("KitchenService.RegisterCanister: %w", err)
	}
	return canister, nil
}
