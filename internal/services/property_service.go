package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/cache"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/message"
	"github.com/sabimarket/sabimarket-backend/internal/utils"
)

// PropertyService runs the listing verification pipeline: a landlord submits a
// listing, a field agent confirms it physically exists, a lawyer confirms the
// documents, and only then does it go live. Fingerprints computed at
// submission keep the same unit from being listed twice.
type PropertyService struct {
	models   *data.Models
	cache    *cache.Cache
	notifier *notifier
}

func NewPropertyService(models *data.Models, c *cache.Cache, dispatcher message.MessageDispatcherInterface) *PropertyService {
	return &PropertyService{
		models:   models,
		cache:    c,
		notifier: &notifier{models: models, dispatcher: dispatcher},
	}
}

type CreatePropertyRequest struct {
	Title        string
	Description  string
	PropertyType data.PropertyType
	ListingType  data.ListingType
	Address      string
	City         string
	State        string
	Latitude     *float64
	Longitude    *float64
	Bedrooms     int
	Bathrooms    int
	SizeSqm      int
	Price        int64
	DocumentURLs []string
}

func (r CreatePropertyRequest) validate() error {
	if r.Title == "" || r.Address == "" || r.City == "" || r.State == "" {
		return fmt.Errorf("%w: title, address, city and state are required", ErrInvalidInput)
	}
	if r.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be provided together", ErrInvalidInput)
	}
	return nil
}

// CreateProperty submits a listing into the pipeline. The draft row and the
// move to awaiting_agent commit together; a fingerprint collision with any
// live listing is rejected up front.
func (s *PropertyService) CreateProperty(ctx context.Context, landlordID string, req CreatePropertyRequest) (*data.Property, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	propertyHash := utils.PropertyFingerprint(req.Address, req.City, req.State,
		string(req.PropertyType), string(req.ListingType), req.Bedrooms, req.SizeSqm)
	coordinatesHash := utils.CoordinatesFingerprint(req.Latitude, req.Longitude)

	return db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Property, error) {
		if _, err := s.models.Properties.GetByPropertyHash(ctx, dbTx, propertyHash); err == nil {
			return nil, fmt.Errorf("listing with the same attributes already exists: %w", ErrDuplicateProperty)
		} else if !errors.Is(err, data.ErrRecordNotFound) {
			return nil, fmt.Errorf("checking listing fingerprint: %w", err)
		}

		property, err := s.models.Properties.Insert(ctx, dbTx, data.PropertyInsert{
			LandlordID:      landlordID,
			Title:           req.Title,
			Description:     req.Description,
			PropertyType:    req.PropertyType,
			ListingType:     req.ListingType,
			Address:         req.Address,
			City:            req.City,
			State:           req.State,
			Latitude:        req.Latitude,
			Longitude:       req.Longitude,
			Bedrooms:        req.Bedrooms,
			Bathrooms:       req.Bathrooms,
			SizeSqm:         req.SizeSqm,
			Price:           req.Price,
			DocumentURLs:    req.DocumentURLs,
			PropertyHash:    propertyHash,
			CoordinatesHash: coordinatesHash,
		})
		if err != nil {
			if errors.Is(err, data.ErrRecordAlreadyExists) {
				return nil, fmt.Errorf("listing with the same attributes already exists: %w", ErrDuplicateProperty)
			}
			return nil, fmt.Errorf("inserting property: %w", err)
		}

		if err = property.Status.TransitionTo(data.AwaitingAgentPropertyStatus); err != nil {
			return nil, fmt.Errorf("submitting property %s for verification: %w", property.ID, err)
		}
		if err = s.models.Properties.UpdateStatus(ctx, dbTx, property.ID, data.AwaitingAgentPropertyStatus); err != nil {
			return nil, fmt.Errorf("submitting property %s for verification: %w", property.ID, err)
		}
		property.Status = data.AwaitingAgentPropertyStatus
		return property, nil
	})
}

// AssignVerifiers pins an agent and/or a lawyer to a listing. Admin or
// moderator role required.
func (s *PropertyService) AssignVerifiers(ctx context.Context, assignerID, propertyID string, agentID, lawyerID *string) error {
	assigner, err := s.models.Users.Get(ctx, s.models.DBConnectionPool, assignerID)
	if err != nil {
		return fmt.Errorf("loading assigner %s: %w", assignerID, err)
	}
	if !assigner.Role.IsPlatformAuthority() {
		return fmt.Errorf("role %s cannot assign verifiers: %w", assigner.Role, ErrUnauthorized)
	}
	if agentID == nil && lawyerID == nil {
		return fmt.Errorf("%w: nothing to assign", ErrInvalidInput)
	}
	if err = s.models.Properties.AssignVerifiers(ctx, s.models.DBConnectionPool, propertyID, agentID, lawyerID); err != nil {
		return fmt.Errorf("assigning verifiers for property %s: %w", propertyID, err)
	}
	return nil
}

// AgentVerify records the field agent's physical inspection. Approval moves
// the listing straight into legal review.
func (s *PropertyService) AgentVerify(ctx context.Context, agentID, propertyID string, action data.VerificationAction, notes string) (*data.Property, error) {
	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Property, []db.PostCommitFn, error) {
		property, err := s.models.Properties.GetForUpdate(ctx, dbTx, propertyID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading property %s: %w", propertyID, err)
		}
		if property.AgentID != nil && *property.AgentID != agentID {
			return nil, nil, fmt.Errorf("property %s is assigned to a different agent: %w", propertyID, ErrUnauthorized)
		}

		var target data.PropertyStatus
		switch action {
		case data.ApproveVerificationAction:
			target = data.AgentVerifiedPropertyStatus
		case data.RejectVerificationAction:
			target = data.RejectedPropertyStatus
		default:
			return nil, nil, fmt.Errorf("%w: unknown verification action %q", ErrInvalidInput, action)
		}
		if err = property.Status.TransitionTo(target); err != nil {
			return nil, nil, fmt.Errorf("verifying property %s: %w", propertyID, err)
		}

		if err = s.models.Properties.RecordAgentVerification(ctx, dbTx, propertyID, agentID, target); err != nil {
			return nil, nil, fmt.Errorf("recording agent verification for property %s: %w", propertyID, err)
		}
		if target == data.AgentVerifiedPropertyStatus {
			if err = s.models.Properties.UpdateStatus(ctx, dbTx, propertyID, data.AwaitingLawyerPropertyStatus); err != nil {
				return nil, nil, fmt.Errorf("queueing property %s for legal review: %w", propertyID, err)
			}
		}

		if _, err = s.models.PropertyVerifications.Insert(ctx, dbTx, data.PropertyVerificationInsert{
			PropertyID:   propertyID,
			VerifierID:   agentID,
			VerifierRole: data.AgentUserRole,
			Action:       action,
			Notes:        notes,
		}); err != nil {
			return nil, nil, err
		}

		property, err = s.models.Properties.Get(ctx, dbTx, propertyID)
		if err != nil {
			return nil, nil, fmt.Errorf("reloading property %s: %w", propertyID, err)
		}

		landlordID := property.LandlordID
		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			s.cache.Delete(ctx, cache.PropertyKey(propertyID))
			s.notifier.notifyUser(ctx, landlordID, "Listing inspection update",
				fmt.Sprintf("An agent has %sd your listing %q.", action, property.Title))
		}}
		return property, postCommit, nil
	})
}

// LawyerVerify records the legal document review, the last gate before a
// listing goes live.
func (s *PropertyService) LawyerVerify(ctx context.Context, lawyerID, propertyID string, action data.VerificationAction, notes string) (*data.Property, error) {
	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Property, []db.PostCommitFn, error) {
		property, err := s.models.Properties.GetForUpdate(ctx, dbTx, propertyID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading property %s: %w", propertyID, err)
		}
		if property.LawyerID != nil && *property.LawyerID != lawyerID {
			return nil, nil, fmt.Errorf("property %s is assigned to a different lawyer: %w", propertyID, ErrUnauthorized)
		}

		var target data.PropertyStatus
		switch action {
		case data.ApproveVerificationAction:
			target = data.LawyerVerifiedPropertyStatus
		case data.RejectVerificationAction:
			target = data.RejectedPropertyStatus
		default:
			return nil, nil, fmt.Errorf("%w: unknown verification action %q", ErrInvalidInput, action)
		}
		if err = property.Status.TransitionTo(target); err != nil {
			return nil, nil, fmt.Errorf("verifying property %s: %w", propertyID, err)
		}

		if err = s.models.Properties.RecordLawyerVerification(ctx, dbTx, propertyID, lawyerID, target); err != nil {
			return nil, nil, fmt.Errorf("recording lawyer verification for property %s: %w", propertyID, err)
		}
		if target == data.LawyerVerifiedPropertyStatus {
			if err = s.models.Properties.UpdateStatus(ctx, dbTx, propertyID, data.ActivePropertyStatus); err != nil {
				return nil, nil, fmt.Errorf("activating property %s: %w", propertyID, err)
			}
		}

		if _, err = s.models.PropertyVerifications.Insert(ctx, dbTx, data.PropertyVerificationInsert{
			PropertyID:   propertyID,
			VerifierID:   lawyerID,
			VerifierRole: data.LawyerUserRole,
			Action:       action,
			Notes:        notes,
		}); err != nil {
			return nil, nil, err
		}

		property, err = s.models.Properties.Get(ctx, dbTx, propertyID)
		if err != nil {
			return nil, nil, fmt.Errorf("reloading property %s: %w", propertyID, err)
		}

		landlordID := property.LandlordID
		title := property.Title
		live := property.Status == data.ActivePropertyStatus
		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			s.cache.Delete(ctx, cache.PropertyKey(propertyID))
			if live {
				s.notifier.notifyUser(ctx, landlordID, "Listing is live",
					fmt.Sprintf("Your listing %q passed legal review and is now live.", title))
			} else {
				s.notifier.notifyUser(ctx, landlordID, "Listing rejected",
					fmt.Sprintf("Your listing %q was rejected during legal review.", title))
			}
		}}
		return property, postCommit, nil
	})
}

// SetListingState moves a live listing to suspended, sold or rented, or lifts
// a suspension. Landlords manage their own listings; platform authorities can
// suspend anyone's.
func (s *PropertyService) SetListingState(ctx context.Context, actorID, propertyID string, target data.PropertyStatus) (*data.Property, error) {
	actor, err := s.models.Users.Get(ctx, s.models.DBConnectionPool, actorID)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", actorID, err)
	}

	property, err := db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Property, error) {
		property, err := s.models.Properties.GetForUpdate(ctx, dbTx, propertyID)
		if err != nil {
			return nil, fmt.Errorf("loading property %s: %w", propertyID, err)
		}
		if property.LandlordID != actorID && !actor.Role.IsPlatformAuthority() {
			return nil, fmt.Errorf("user %s does not own property %s: %w", actorID, propertyID, ErrUnauthorized)
		}
		if err = property.Status.TransitionTo(target); err != nil {
			return nil, fmt.Errorf("moving property %s to %s: %w", propertyID, target, err)
		}
		if err = s.models.Properties.UpdateStatus(ctx, dbTx, propertyID, target); err != nil {
			return nil, fmt.Errorf("moving property %s to %s: %w", propertyID, target, err)
		}
		property.Status = target
		return property, nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, cache.PropertyKey(propertyID))
	return property, nil
}

func (s *PropertyService) GetProperty(ctx context.Context, propertyID string) (*data.Property, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.PropertyKey(propertyID), cache.PropertyTTL, func() (*data.Property, error) {
		return s.models.Properties.Get(ctx, s.models.DBConnectionPool, propertyID)
	})
}

func (s *PropertyService) VerificationHistory(ctx context.Context, propertyID string) ([]data.PropertyVerification, error) {
	return s.models.PropertyVerifications.ListByProperty(ctx, propertyID)
}

func (s *PropertyService) ListAwaitingAgent(ctx context.Context, limit, offset int) ([]data.Property, error) {
	return s.models.Properties.ListByStatus(ctx, data.AwaitingAgentPropertyStatus, limit, offset)
}

func (s *PropertyService) ListAwaitingLawyer(ctx context.Context, lawyerID string, limit, offset int) ([]data.Property, error) {
	return s.models.Properties.ListAwaitingLawyer(ctx, lawyerID, limit, offset)
}
