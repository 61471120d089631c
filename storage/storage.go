package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"github.com/lanre-19/WorkAura/domain"
)

// idChunkSize caps how many RowKey clauses go into one filter expression.
const idChunkSize = 20

// notFoundError reports a missing document. Callers dispatch on it through
// the NotFoundError interface declared next to the Storage consumer.
type notFoundError struct{ what string }

func (e notFoundError) Error() string { return e.what + " not found" }
func (e notFoundError) NotFound()     {}

// Storage provides access to the board's persistence: task, project and
// member tables plus the board event queue.
type Storage struct {
	taskTable    *aztables.Client
	projectTable *aztables.Client
	memberTable  *aztables.Client
	eventQueue   *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, projectsTable, membersTable, eventQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable:    svc.NewClient(tasksTable),
		projectTable: svc.NewClient(projectsTable),
		memberTable:  svc.NewClient(membersTable),
		eventQueue:   eq,
	}, nil
}

// Tasks are partitioned by workspace so a board load stays one partition scan.
type taskEntity struct {
	aztables.Entity
	Name        string `json:"Name"`
	Description string `json:"Description"`
	Status      string `json:"Status"`
	Position    int    `json:"Position"`
	ProjectId   string `json:"ProjectId"`
	AssigneeId  string `json:"AssigneeId"`
	DueDate     string `json:"DueDate"`
	CreatedAt   string `json:"CreatedAt"`
}

func (e taskEntity) toTask() domain.Task {
	created, _ := time.Parse(time.RFC3339Nano, e.CreatedAt)
	return domain.Task{
		ID:          e.RowKey,
		Name:        e.Name,
		Description: e.Description,
		Status:      domain.TaskStatus(e.Status),
		Position:    e.Position,
		WorkspaceID: e.PartitionKey,
		ProjectID:   e.ProjectId,
		AssigneeID:  e.AssigneeId,
		DueDate:     e.DueDate,
		CreatedAt:   created,
	}
}

func taskToEntity(t domain.Task) taskEntity {
	return taskEntity{
		Entity:      aztables.Entity{PartitionKey: t.WorkspaceID, RowKey: t.ID},
		Name:        t.Name,
		Description: t.Description,
		Status:      string(t.Status),
		Position:    t.Position,
		ProjectId:   t.ProjectID,
		AssigneeId:  t.AssigneeID,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func buildTaskFilter(f domain.TaskFilter) string {
	clauses := []string{"PartitionKey eq '" + escape(f.WorkspaceID) + "'"}
	if f.ProjectID != "" {
		clauses = append(clauses, "ProjectId eq '"+escape(f.ProjectID)+"'")
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "AssigneeId eq '"+escape(f.AssigneeID)+"'")
	}
	if f.Status != "" {
		clauses = append(clauses, "Status eq '"+escape(string(f.Status))+"'")
	}
	if f.DueDate != "" {
		clauses = append(clauses, "DueDate eq '"+escape(f.DueDate)+"'")
	}
	return strings.Join(clauses, " and ")
}

func (s *Storage) listTaskEntities(ctx context.Context, filter string) ([]domain.Task, error) {
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, ent.toTask())
		}
	}
	return tasks, nil
}

// ListTasks returns the tasks matching the filter, newest first. The table
// service cannot match substrings, so the name search is applied after the
// partition scan.
func (s *Storage) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	tasks, err := s.listTaskEntities(ctx, buildTaskFilter(f))
	if err != nil {
		return nil, err
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		filtered := tasks[:0]
		for _, t := range tasks {
			if strings.Contains(strings.ToLower(t.Name), needle) {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

// GetTask looks a task up by id across workspaces.
func (s *Storage) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	tasks, err := s.listTaskEntities(ctx, "RowKey eq '"+escape(taskID)+"'")
	if err != nil {
		return domain.Task{}, err
	}
	if len(tasks) == 0 {
		return domain.Task{}, notFoundError{what: "task " + taskID}
	}
	return tasks[0], nil
}

// GetTasksByIDs batch-fetches tasks by id. Missing ids are not an error
// here; callers compare result length when absence matters.
func (s *Storage) GetTasksByIDs(ctx context.Context, ids []string) ([]domain.Task, error) {
	tasks := []domain.Task{}
	for start := 0; start < len(ids); start += idChunkSize {
		end := start + idChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := s.listTaskEntities(ctx, rowKeyFilter(ids[start:end]))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, chunk...)
	}
	return tasks, nil
}

func rowKeyFilter(ids []string) string {
	clauses := make([]string, len(ids))
	for i, id := range ids {
		clauses[i] = "RowKey eq '" + escape(id) + "'"
	}
	return strings.Join(clauses, " or ")
}

// CreateTask persists a new task document.
func (s *Storage) CreateTask(ctx context.Context, t domain.Task) error {
	data, err := json.Marshal(taskToEntity(t))
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, data, nil)
	return err
}

// UpdateTask replaces the stored task document.
func (s *Storage) UpdateTask(ctx context.Context, t domain.Task) error {
	data, err := json.Marshal(taskToEntity(t))
	if err != nil {
		return err
	}
	_, err = s.taskTable.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// ApplyTaskUpdate merges one reorder update (status + position) into the
// stored document of t. Each call is an independent write; there is no
// batch transaction around a reorder.
func (s *Storage) ApplyTaskUpdate(ctx context.Context, t domain.Task, u domain.TaskUpdate) error {
	patch := struct {
		aztables.Entity
		Status   string `json:"Status"`
		Position int    `json:"Position"`
	}{
		Entity:   aztables.Entity{PartitionKey: t.WorkspaceID, RowKey: t.ID},
		Status:   string(u.Status),
		Position: u.Position,
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	_, err = s.taskTable.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeMerge})
	return err
}

// DeleteTask removes the task document.
func (s *Storage) DeleteTask(ctx context.Context, t domain.Task) error {
	_, err := s.taskTable.DeleteEntity(ctx, t.WorkspaceID, t.ID, nil)
	return err
}

// TopPosition returns the minimum position currently used in the given
// column of the workspace. The second return is false when the column is
// empty.
func (s *Storage) TopPosition(ctx context.Context, workspaceID string, status domain.TaskStatus) (int, bool, error) {
	filter := "PartitionKey eq '" + escape(workspaceID) + "' and Status eq '" + escape(string(status)) + "'"
	tasks, err := s.listTaskEntities(ctx, filter)
	if err != nil {
		return 0, false, err
	}
	if len(tasks) == 0 {
		return 0, false, nil
	}
	top := tasks[0].Position
	for _, t := range tasks[1:] {
		if t.Position < top {
			top = t.Position
		}
	}
	return top, true, nil
}

// CountTasks counts tasks matching the analytics query.
func (s *Storage) CountTasks(ctx context.Context, q domain.TaskCountQuery) (int, error) {
	tasks, err := s.listTaskEntities(ctx, buildCountFilter(q))
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}

func buildCountFilter(q domain.TaskCountQuery) string {
	clauses := []string{"PartitionKey eq '" + escape(q.WorkspaceID) + "'"}
	if q.ProjectID != "" {
		clauses = append(clauses, "ProjectId eq '"+escape(q.ProjectID)+"'")
	}
	if q.AssigneeID != "" {
		clauses = append(clauses, "AssigneeId eq '"+escape(q.AssigneeID)+"'")
	}
	if q.StatusEquals != "" {
		clauses = append(clauses, "Status eq '"+escape(string(q.StatusEquals))+"'")
	}
	if q.StatusNotEquals != "" {
		clauses = append(clauses, "Status ne '"+escape(string(q.StatusNotEquals))+"'")
	}
	// RFC 3339 strings order lexicographically, so string comparison in the
	// table service is a correct time comparison.
	if q.DueBefore != "" {
		clauses = append(clauses, "DueDate lt '"+escape(q.DueBefore)+"'")
	}
	if !q.CreatedFrom.IsZero() {
		clauses = append(clauses, "CreatedAt ge '"+q.CreatedFrom.UTC().Format(time.RFC3339Nano)+"'")
	}
	if !q.CreatedTo.IsZero() {
		clauses = append(clauses, "CreatedAt le '"+q.CreatedTo.UTC().Format(time.RFC3339Nano)+"'")
	}
	return strings.Join(clauses, " and ")
}

type memberEntity struct {
	aztables.Entity
	UserId string `json:"UserId"`
	Name   string `json:"Name"`
	Email  string `json:"Email"`
	Role   string `json:"Role"`
}

func (e memberEntity) toMember() domain.Member {
	return domain.Member{
		ID:          e.RowKey,
		UserID:      e.UserId,
		WorkspaceID: e.PartitionKey,
		Name:        e.Name,
		Email:       e.Email,
		Role:        domain.MemberRole(e.Role),
	}
}

func (s *Storage) listMemberEntities(ctx context.Context, filter string) ([]domain.Member, error) {
	pager := s.memberTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	members := []domain.Member{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent memberEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			members = append(members, ent.toMember())
		}
	}
	return members, nil
}

// FindMember resolves the user's membership in the workspace.
func (s *Storage) FindMember(ctx context.Context, workspaceID, userID string) (domain.Member, error) {
	filter := "PartitionKey eq '" + escape(workspaceID) + "' and UserId eq '" + escape(userID) + "'"
	members, err := s.listMemberEntities(ctx, filter)
	if err != nil {
		return domain.Member{}, err
	}
	if len(members) == 0 {
		return domain.Member{}, notFoundError{what: fmt.Sprintf("member %s in workspace %s", userID, workspaceID)}
	}
	return members[0], nil
}

// MembersByIDs batch-fetches members by their member ids.
func (s *Storage) MembersByIDs(ctx context.Context, ids []string) ([]domain.Member, error) {
	if len(ids) == 0 {
		return []domain.Member{}, nil
	}
	members := []domain.Member{}
	for start := 0; start < len(ids); start += idChunkSize {
		end := start + idChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := s.listMemberEntities(ctx, rowKeyFilter(ids[start:end]))
		if err != nil {
			return nil, err
		}
		members = append(members, chunk...)
	}
	return members, nil
}

type projectEntity struct {
	aztables.Entity
	Name     string `json:"Name"`
	ImageUrl string `json:"ImageUrl"`
}

func (e projectEntity) toProject() domain.Project {
	return domain.Project{
		ID:          e.RowKey,
		Name:        e.Name,
		WorkspaceID: e.PartitionKey,
		ImageURL:    e.ImageUrl,
	}
}

func (s *Storage) listProjectEntities(ctx context.Context, filter string) ([]domain.Project, error) {
	pager := s.projectTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	projects := []domain.Project{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent projectEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			projects = append(projects, ent.toProject())
		}
	}
	return projects, nil
}

// GetProject looks a project up by id across workspaces.
func (s *Storage) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	projects, err := s.listProjectEntities(ctx, "RowKey eq '"+escape(projectID)+"'")
	if err != nil {
		return domain.Project{}, err
	}
	if len(projects) == 0 {
		return domain.Project{}, notFoundError{what: "project " + projectID}
	}
	return projects[0], nil
}

// ProjectsByIDs batch-fetches projects by id.
func (s *Storage) ProjectsByIDs(ctx context.Context, ids []string) ([]domain.Project, error) {
	if len(ids) == 0 {
		return []domain.Project{}, nil
	}
	projects := []domain.Project{}
	for start := 0; start < len(ids); start += idChunkSize {
		end := start + idChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := s.listProjectEntities(ctx, rowKeyFilter(ids[start:end]))
		if err != nil {
			return nil, err
		}
		projects = append(projects, chunk...)
	}
	return projects, nil
}

// EnqueueEvent publishes a board event for downstream consumers.
func (s *Storage) EnqueueEvent(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.eventQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}
