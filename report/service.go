package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/google/uuid"

	"civicwatch/geo"
)

// Store is the durable home of report records and their vote ledger. The
// vote operations must serialize the duplicate check with the insert per
// report; the MySQL implementation does this with a row lock inside a
// transaction.
type Store interface {
	Insert(ctx context.Context, r *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	// List returns all reports, newest-created first.
	List(ctx context.Context) ([]*Report, error)
	SetStatus(ctx context.Context, id string, status Status) error
	// Delete removes the record and returns the image key it referenced,
	// empty when the report had no image.
	Delete(ctx context.Context, id string) (imageKey string, err error)
	CastVote(ctx context.Context, id string, kind VoteKind, identity string) (VoteTally, error)
	HasVoted(ctx context.Context, id, identity string) (sighted, resolved bool, err error)
}

// ImageStore holds uploaded photo evidence.
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	Delete(ctx context.Context, key string) error
}

// ImageUpload is a pending photo attachment for a new report. Ext carries
// the already-whitelisted file extension without the dot.
type ImageUpload struct {
	Ext         string
	ContentType string
	Body        io.Reader
}

// Service owns the report lifecycle: creation, listing, status, votes and
// the resolution-threshold rule.
type Service struct {
	store            Store
	images           ImageStore
	resolveThreshold int
}

// DefaultResolveThreshold is the number of distinct resolved votes that
// retires a report when no explicit threshold is configured.
const DefaultResolveThreshold = 5

func NewService(store Store, images ImageStore, resolveThreshold int) *Service {
	if resolveThreshold <= 0 {
		resolveThreshold = DefaultResolveThreshold
	}
	return &Service{store: store, images: images, resolveThreshold: resolveThreshold}
}

// CreateArgs carries the raw creation fields. Latitude and Longitude arrive
// as strings straight from the form and are validated here.
type CreateArgs struct {
	IssueType    string
	CustomIssue  string
	Description  string
	LocationName string
	Latitude     string
	Longitude    string
}

// Create validates args, uploads the image first when one is attached, and
// inserts the new record. An image upload failure aborts creation so the
// record never references a blob that is not there.
func (s *Service) Create(ctx context.Context, args CreateArgs, image *ImageUpload) (*Report, error) {
	if strings.TrimSpace(args.IssueType) == "" {
		return nil, fmt.Errorf("%w: issue_type is required", ErrValidation)
	}
	if strings.TrimSpace(args.LocationName) == "" {
		return nil, fmt.Errorf("%w: location_name is required", ErrValidation)
	}
	lat, err := parseCoord(args.Latitude, "latitude")
	if err != nil {
		return nil, err
	}
	lng, err := parseCoord(args.Longitude, "longitude")
	if err != nil {
		return nil, err
	}

	r := &Report{
		ID:           uuid.NewString(),
		IssueType:    args.IssueType,
		Description:  args.Description,
		LocationName: args.LocationName,
		Latitude:     lat,
		Longitude:    lng,
		Status:       StatusPending,
		Sightings:    NewVoteTally(),
		Resolved:     NewVoteTally(),
	}
	// The free-text label only means something for custom issues.
	if args.IssueType == "custom" {
		r.CustomIssue = args.CustomIssue
	}

	if image != nil {
		key := fmt.Sprintf("images/%s.%s", uuid.NewString(), image.Ext)
		if err := s.images.Upload(ctx, key, image.ContentType, image.Body); err != nil {
			return nil, fmt.Errorf("uploading report image: %w", err)
		}
		r.ImageKey = key
	}

	if err := s.store.Insert(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func parseCoord(s, field string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a decimal number", ErrValidation, field)
	}
	return v, nil
}

// List returns reports newest first. When ref is non-nil only reports within
// geo.NearbyRadiusKm of it are kept; when status is non-empty only reports
// with that exact status are kept.
func (s *Service) List(ctx context.Context, ref *geo.Point, status string) ([]*Report, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if ref == nil && status == "" {
		return all, nil
	}
	out := make([]*Report, 0, len(all))
	for _, r := range all {
		if status != "" && string(r.Status) != status {
			continue
		}
		if ref != nil && !geo.WithinRadius(*ref, geo.Point{Latitude: r.Latitude, Longitude: r.Longitude}, geo.NearbyRadiusKm) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Report, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status must be one of pending, in_progress, resolved", ErrValidation)
	}
	return s.store.SetStatus(ctx, id, status)
}

// VoteResult is the outcome of a recorded vote. Deleted is set when a
// resolved vote pushed the tally over the threshold and retired the report.
type VoteResult struct {
	Tally   VoteTally
	Deleted bool
}

// RecordVote casts a vote through the ledger and applies the
// resolution-threshold rule. Sighting votes never delete.
func (s *Service) RecordVote(ctx context.Context, id string, kind VoteKind, identity string) (VoteResult, error) {
	tally, err := s.store.CastVote(ctx, id, kind, identity)
	if err != nil {
		return VoteResult{}, err
	}
	res := VoteResult{Tally: tally}
	if kind == VoteResolved && tally.Count >= s.resolveThreshold {
		if err := s.Delete(ctx, id); err != nil {
			// A concurrent vote may have retired the report already.
			if !errors.Is(err, ErrNotFound) {
				return res, err
			}
		}
		res.Deleted = true
	}
	return res, nil
}

// UserStatus reports whether the identity has already cast each vote kind.
func (s *Service) UserStatus(ctx context.Context, id, identity string) (sighted, resolved bool, err error) {
	return s.store.HasVoted(ctx, id, identity)
}

// Delete removes the report record and then its image blob. The record
// removal is authoritative; blob cleanup is best effort and its failure is
// logged, never returned.
func (s *Service) Delete(ctx context.Context, id string) error {
	imageKey, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if imageKey != "" {
		if err := s.images.Delete(ctx, imageKey); err != nil {
			log.Errorf("Failed to delete image %s for report %s: %v", imageKey, id, err)
		}
	}
	return nil
}

// ResolveThreshold exposes the configured threshold, mostly for logging.
func (s *Service) ResolveThreshold() int {
	return s.resolveThreshold
}
