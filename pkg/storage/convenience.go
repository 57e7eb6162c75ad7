package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// approvedTag and rejectedTag are the two state tags Approve/Reject
// toggle; they are part of keywords.stateTags' recognized lifecycle
// markers, excluded from pointer-tag extraction.
const (
	approvedTag = "approved"
	rejectedTag = "rejected"
)

// convenienceMutate builds the PatchInput for a convenience verb given
// the breadcrumb's current row; it runs inside the same serializable
// transaction that reads the row, so the computed If-Match can never go
// stale between read and write — always read from the current row
// inside the same serializable transaction that writes it.
type convenienceMutate func(row breadcrumbRow) models.PatchInput

// runConvenience loads the current row, authorizes the caller, computes
// the patch via mutate, and applies it — all inside one
// sql.LevelSerializable transaction.
func (s *Store) runConvenience(ctx context.Context, claims *auth.Claims, id, actorID string, mutate convenienceMutate) (int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "begin convenience transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row, found, err := s.getRowTx(ctx, tx, id)
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "load breadcrumb", err)
	}
	if !found {
		return 0, apierr.NotFoundf("breadcrumb %s not found", id)
	}
	acls, err := s.loadACLs(ctx, tx, id)
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "load acls", err)
	}
	if !auth.CanUpdate(claims, row.OwnerID, acls) {
		return 0, apierr.NotFoundf("breadcrumb %s not found", id)
	}

	input := mutate(row)
	input.ActorID = actorID
	newVersion, err := s.applyPatch(ctx, tx, row, row.Version, input)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, apierr.Wrap(apierr.Internal, "commit convenience transaction", err)
	}
	s.publisher.AfterCommit(ctx, row.OwnerID, events.Event{
		Type:         events.TypeBreadcrumbUpdate,
		BreadcrumbID: id,
		SchemaName:   row.SchemaName,
		Version:      newVersion,
		ActorID:      actorID,
		Timestamp:    time.Now().UTC(),
	})
	s.edges.Enqueue(id)
	return newVersion, nil
}

// AddTags unions add into the breadcrumb's current tag set.
func (s *Store) AddTags(ctx context.Context, claims *auth.Claims, id, actorID string, add []string) (int, error) {
	return s.runConvenience(ctx, claims, id, actorID, func(row breadcrumbRow) models.PatchInput {
		return models.PatchInput{Tags: unionTags(row.Tags, add)}
	})
}

// RemoveTags removes every tag in remove from the breadcrumb's current
// tag set.
func (s *Store) RemoveTags(ctx context.Context, claims *auth.Claims, id, actorID string, remove []string) (int, error) {
	return s.runConvenience(ctx, claims, id, actorID, func(row breadcrumbRow) models.PatchInput {
		return models.PatchInput{Tags: subtractTags(row.Tags, remove)}
	})
}

// MergeContext deep-merges patch onto the breadcrumb's current context:
// scalar leaves are last-write-wins, arrays are element-wise appended
// (patch elements after existing ones), and objects recurse.
func (s *Store) MergeContext(ctx context.Context, claims *auth.Claims, id, actorID string, patch json.RawMessage) (int, error) {
	var mutateErr error
	version, err := s.runConvenience(ctx, claims, id, actorID, func(row breadcrumbRow) models.PatchInput {
		merged, err := mergeJSON(row.Context, patch)
		if err != nil {
			mutateErr = err
			return models.PatchInput{}
		}
		return models.PatchInput{Context: merged}
	})
	if mutateErr != nil {
		return 0, apierr.Wrap(apierr.InvalidArgument, "merge context", mutateErr)
	}
	return version, err
}

// Approve adds the "approved" state tag and clears "rejected".
func (s *Store) Approve(ctx context.Context, claims *auth.Claims, id, actorID string) (int, error) {
	return s.runConvenience(ctx, claims, id, actorID, func(row breadcrumbRow) models.PatchInput {
		tags := subtractTags(unionTags(row.Tags, []string{approvedTag}), []string{rejectedTag})
		return models.PatchInput{Tags: tags}
	})
}

// Reject adds the "rejected" state tag and clears "approved".
func (s *Store) Reject(ctx context.Context, claims *auth.Claims, id, actorID string) (int, error) {
	return s.runConvenience(ctx, claims, id, actorID, func(row breadcrumbRow) models.PatchInput {
		tags := subtractTags(unionTags(row.Tags, []string{rejectedTag}), []string{approvedTag})
		return models.PatchInput{Tags: tags}
	})
}

func unionTags(existing []string, add []string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, t := range existing {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range add {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func subtractTags(existing []string, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, t := range remove {
		drop[t] = true
	}
	out := make([]string, 0, len(existing))
	for _, t := range existing {
		if !drop[t] {
			out = append(out, t)
		}
	}
	return out
}

func mergeJSON(original, patch []byte) ([]byte, error) {
	var base any
	if len(original) > 0 {
		if err := json.Unmarshal(original, &base); err != nil {
			return nil, fmt.Errorf("decode original context: %w", err)
		}
	}
	var overlay any
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, fmt.Errorf("decode context patch: %w", err)
	}
	merged, err := json.Marshal(deepMerge(base, overlay))
	if err != nil {
		return nil, fmt.Errorf("marshal merged context: %w", err)
	}
	return merged, nil
}

// deepMerge overlays patch onto base: matching objects recurse key by
// key, matching arrays are concatenated (base elements first, then
// patch's), and anything else — a scalar, or a type mismatch between
// base and patch at the same path — is last-write-wins in patch's favor.
func deepMerge(base, overlay any) any {
	if baseMap, ok := base.(map[string]any); ok {
		if overlayMap, ok := overlay.(map[string]any); ok {
			out := make(map[string]any, len(baseMap)+len(overlayMap))
			for k, v := range baseMap {
				out[k] = v
			}
			for k, v := range overlayMap {
				if existing, present := out[k]; present {
					out[k] = deepMerge(existing, v)
				} else {
					out[k] = v
				}
			}
			return out
		}
	}
	if baseArr, ok := base.([]any); ok {
		if overlayArr, ok := overlay.([]any); ok {
			out := make([]any, 0, len(baseArr)+len(overlayArr))
			out = append(out, baseArr...)
			out = append(out, overlayArr...)
			return out
		}
	}
	return overlay
}
