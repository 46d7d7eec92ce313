package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/quietroute/optout-api/pkg/model"
)

const milestonesCollection = "milestone_events"

// MilestoneRepository is the outbox for milestone events. Downstream
// escalation (mail, notifications) drains the collection; this core only
// appends.
type MilestoneRepository struct {
	client *firestore.Client
}

func NewMilestoneRepository(client *firestore.Client) *MilestoneRepository {
	return &MilestoneRepository{client: client}
}

// Publish writes the event under the deterministic ID
// {routeKey}_{percent}. Create fails with AlreadyExists when the pair has
// fired before, which keeps emission at-most-once even if a count is ever
// replayed across a threshold.
func (r *MilestoneRepository) Publish(ctx context.Context, ev model.MilestoneEvent) error {
	docID := fmt.Sprintf("%s_%d", ev.RouteKey, ev.MilestonePercent)
	_, err := r.client.Collection(milestonesCollection).Doc(docID).Create(ctx, ev)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("publish milestone %s: %w", docID, err)
	}
	return nil
}
