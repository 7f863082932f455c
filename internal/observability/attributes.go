// Package observability provides metrics and logging utilities.
package observability

import (
	"go.opentelemetry.io/otel/attribute"

	"simdispatch/internal/apperrors"
	"simdispatch/internal/worker"
)

// Attribute keys
const (
	attrBackend  = "backend"
	attrWorker   = "worker"
	attrCategory = "category"
	attrSuccess  = "success"
)

func backendAttr(kind worker.Kind) attribute.KeyValue {
	return attribute.String(attrBackend, string(kind))
}

func workerAttr(id string) attribute.KeyValue {
	return attribute.String(attrWorker, id)
}

func categoryAttr(cat apperrors.Category) attribute.KeyValue {
	return attribute.String(attrCategory, string(cat))
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}
