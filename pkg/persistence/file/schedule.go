package file

import (
	"context"

	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/persistence"
)

const schedulesDir = "schedules"

// ScheduleRepository stores workflow schedules, one JSON file per schedule.
type ScheduleRepository struct {
	store *store
}

func (r *ScheduleRepository) SaveSchedule(_ context.Context, schedule *models.WorkflowSchedule) error {
	if err := r.store.write(schedulesDir, schedule.ID, schedule); err != nil {
		return persistence.NewStoreError("SaveSchedule", schedule.ID, err)
	}

	return nil
}

func (r *ScheduleRepository) ScheduleByID(_ context.Context, id string) (*models.WorkflowSchedule, error) {
	var schedule models.WorkflowSchedule

	found, err := r.store.read(schedulesDir, id, &schedule)
	if err != nil {
		return nil, persistence.NewStoreError("ScheduleByID", id, err)
	}

	if !found {
		return nil, persistence.NewStoreError("ScheduleByID", id, persistence.ErrScheduleNotFound)
	}

	return &schedule, nil
}

func (r *ScheduleRepository) ActiveSchedules(ctx context.Context) ([]*models.WorkflowSchedule, error) {
	ids, err := r.store.ids(schedulesDir)
	if err != nil {
		return nil, persistence.NewStoreError("ActiveSchedules", "", err)
	}

	active := make([]*models.WorkflowSchedule, 0, len(ids))

	for _, id := range ids {
		schedule, err := r.ScheduleByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if schedule.Active {
			active = append(active, schedule)
		}
	}

	return active, nil
}

func (r *ScheduleRepository) DeleteSchedule(_ context.Context, id string) error {
	found, err := r.store.remove(schedulesDir, id)
	if err != nil {
		return persistence.NewStoreError("DeleteSchedule", id, err)
	}

	if !found {
		return persistence.NewStoreError("DeleteSchedule", id, persistence.ErrScheduleNotFound)
	}

	return nil
}
