package indices

import (
	"approvalflow/client/es"
	"approvalflow/domain/approval"
	"context"
	"fmt"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	InstanceIndexName = "approval-instances"
)

type InstanceDocument struct {
	approval.InstanceDetail
}

type BatchActionError map[types.ID]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[types.ID]error(e))
}

func IndexInstances(ctx context.Context, details []approval.InstanceDetail) error {
	docs := make([]InstanceDocument, 0, len(details))
	for _, detail := range details {
		docs = append(docs, InstanceDocument{InstanceDetail: detail})
	}

	if err := saveInstanceDocuments(ctx, docs); err != nil {
		return err
	}
	return nil
}

func saveInstanceDocuments(ctx context.Context, docs []InstanceDocument) BatchActionError {
	errs := BatchActionError{}

	for _, doc := range docs {
		if err := es.IndexFunc(ctx, InstanceIndexName, doc.ID, doc); err != nil {
			errs[doc.ID] = err
			logrus.Warnf("index approval instance %d %s %s", doc.ID, doc.Title, err)
		} else {
			logrus.Infof("index approval instance %d %s successfully", doc.ID, doc.Title)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
