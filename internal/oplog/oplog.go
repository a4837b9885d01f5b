// Package oplog adapts the domain OperationLogger contracts onto zap.
package oplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/docledger/pkg/audit"
	"github.com/MarkoPoloResearchLab/docledger/pkg/numbering"
)

// AuditLogger logs ledger operations.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger wires an AuditLogger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogOperation implements audit.OperationLogger.
func (auditLogger *AuditLogger) LogOperation(_ context.Context, entry audit.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.EntityType != "" {
		fields = append(fields, zap.String("entity_type", entry.EntityType), zap.String("entity_id", entry.EntityID))
	}
	if entry.Action != "" {
		fields = append(fields, zap.String("action", entry.Action))
	}
	if entry.Sequence != 0 {
		fields = append(fields, zap.Int64("sequence", entry.Sequence))
	}
	if entry.Error != nil {
		auditLogger.logger.Warn("audit operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	auditLogger.logger.Info("audit operation", fields...)
}

// NumberingLogger logs numbering operations.
type NumberingLogger struct {
	logger *zap.Logger
}

// NewNumberingLogger wires a NumberingLogger.
func NewNumberingLogger(logger *zap.Logger) *NumberingLogger {
	return &NumberingLogger{logger: logger}
}

// LogOperation implements numbering.OperationLogger.
func (numberingLogger *NumberingLogger) LogOperation(_ context.Context, entry numbering.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.Kind != "" {
		fields = append(fields, zap.String("kind", entry.Kind.String()))
	}
	if entry.ReservationID != "" {
		fields = append(fields, zap.String("reservation_id", entry.ReservationID))
	}
	if entry.FormattedNumber != "" {
		fields = append(fields, zap.String("number", entry.FormattedNumber))
	}
	if entry.DocumentID != "" {
		fields = append(fields, zap.String("document_id", entry.DocumentID))
	}
	if entry.Operation == "release" {
		fields = append(fields, zap.Bool("reclaimed", entry.Reclaimed))
	}
	if entry.Error != nil {
		numberingLogger.logger.Warn("numbering operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	numberingLogger.logger.Info("numbering operation", fields...)
}
