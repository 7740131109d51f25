package search

import (
	"approvalflow/authority"
	"approvalflow/bizerror"
	"approvalflow/client/es"
	"approvalflow/domain/approval"
	"approvalflow/indices"
	"approvalflow/session"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fundwit/go-commons/types"
)

var (
	SearchInstancesFunc        = SearchInstances
	DetailInstanceDocumentFunc = DetailInstanceDocument
)

type InstanceQuery struct {
	Title      string   `json:"title"`
	EntityType string   `json:"entityType"`
	Statuses   []string `json:"statuses"`
	Initiator  types.ID `json:"initiator"`
}

// SearchInstances only returns instances the session initiated unless it holds the override permission.
func SearchInstances(q InstanceQuery, sec *session.Session) ([]approval.InstanceDetail, error) {
	if sec == nil {
		return nil, errors.New("session is required")
	}

	/*
		{
			"query": {
				"bool": {
					"filter": [
						{"term": {"entityType": "quote"}},
						{"terms": {"status": ["PENDING"]}},
						{"term": {"initiatorId": "123"}},
						{"match": {"title": {"query": "xxx", "operator": "AND"}}}
					]
				}
			},
			"size": 10000,
			"sort": [{"createTime": {"order": "desc"}}]
		}
	*/
	filters := make([]es.H, 0, 4)
	if q.EntityType != "" {
		filters = append(filters, es.H{"term": es.H{"entityType": q.EntityType}})
	}
	if len(q.Statuses) > 0 {
		filters = append(filters, es.H{"terms": es.H{"status": q.Statuses}})
	}

	initiator := q.Initiator
	if !sec.HasPermission(authority.PermApprovalOverride) {
		initiator = sec.ActorID()
	}
	if initiator != 0 {
		filters = append(filters, es.H{"term": es.H{"initiatorId": initiator.String()}})
	}
	if q.Title != "" {
		filters = append(filters, es.H{"match": es.H{"title": es.H{"query": q.Title, "operator": "AND"}}})
	}

	sorts := []es.H{{"createTime": es.H{"order": "desc"}}}
	root := es.H{"bool": es.H{"filter": filters}}
	r, err := es.SearchFunc(sec.Ctx(), indices.InstanceIndexName, es.H{"size": 10000, "query": root, "sort": sorts})
	if err != nil {
		return nil, err
	}

	details := make([]approval.InstanceDetail, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		d := approval.InstanceDetail{}
		if err := json.NewDecoder(strings.NewReader(string(hit.Source))).Decode(&d); err != nil {
			return nil, fmt.Errorf("decode approval instance document %s: %w", hit.Id, err)
		}
		details = append(details, d)
	}
	return details, nil
}

// DetailInstanceDocument reads one indexed instance, others' instances are hidden from ordinary users.
func DetailInstanceDocument(id types.ID, sec *session.Session) (*approval.InstanceDetail, error) {
	if sec == nil {
		return nil, errors.New("session is required")
	}
	source, err := es.GetDocumentFunc(sec.Ctx(), indices.InstanceIndexName, id)
	if err != nil {
		return nil, err
	}
	d := approval.InstanceDetail{}
	if err := json.NewDecoder(strings.NewReader(string(source))).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode approval instance document %s: %w", id, err)
	}
	if d.InitiatorID != sec.ActorID() && !sec.HasPermission(authority.PermApprovalOverride) {
		return nil, bizerror.NewNotFoundError("approval instance", id)
	}
	return &d, nil
}
