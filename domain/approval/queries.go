package approval

import (
	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	QueryPendingTasksFunc = QueryPendingTasks
	DetailInstanceFunc    = DetailInstance
	QueryInstancesFunc    = QueryInstances
	LoadInstancesFunc     = LoadInstances
)

func QueryPendingTasks(userID types.ID, filter PendingTaskFilter, db *gorm.DB) ([]PendingTask, error) {
	var tasks []Task
	if err := db.Where("assignee_id = ? AND status = ?", userID, TaskPending).Order("create_time ASC").Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return []PendingTask{}, nil
	}

	instanceIDs := make([]types.ID, 0, len(tasks))
	for _, t := range tasks {
		instanceIDs = append(instanceIDs, t.InstanceID)
	}
	var instances []Instance
	query := db.Where("id IN (?) AND status = ?", instanceIDs, InstancePending)
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.Urgency != "" {
		query = query.Where("urgency = ?", filter.Urgency)
	}
	if err := query.Find(&instances).Error; err != nil {
		return nil, err
	}
	byID := map[types.ID]*Instance{}
	for i := range instances {
		byID[instances[i].ID] = &instances[i]
	}

	result := []PendingTask{}
	for _, t := range tasks {
		instance, ok := byID[t.InstanceID]
		if !ok {
			continue
		}
		result = append(result, PendingTask{Task: t, TemplateCode: instance.TemplateCode, EntityType: instance.EntityType,
			EntityID: instance.EntityID, Title: instance.Title, Summary: instance.Summary, Urgency: instance.Urgency,
			InitiatorID: instance.InitiatorID})
	}
	return result, nil
}

func DetailInstance(id types.ID, db *gorm.DB) (*InstanceDetail, error) {
	instance, err := loadInstance(db, id)
	if err != nil {
		return nil, err
	}
	tasks := []Task{}
	if err := db.Where("instance_id = ?", id).Order("node_order ASC").Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return &InstanceDetail{Instance: *instance, Tasks: tasks}, nil
}

func QueryInstances(entityType string, entityID types.ID, db *gorm.DB) ([]Instance, error) {
	instances := []Instance{}
	if err := db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).Order("create_time ASC").Order("id ASC").
		Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// LoadInstances pages through every instance in id order, page starts at 1.
func LoadInstances(page, size int, db *gorm.DB) ([]Instance, error) {
	offset := (page - 1) * size
	if offset < 0 {
		offset = 0
	}
	instances := []Instance{}
	if err := db.Order("id ASC").Offset(offset).Limit(size).Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}
