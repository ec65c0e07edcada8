package parsers

import (
	"context"

	"go.uber.org/zap"

	"fipsreg/catalogues"
	"fipsreg/models"
)

// stubParser подтверждает каталог, не записывая ничего в БД. Нужен, чтобы
// конвейер принимал каталоги типов, для которых разбор ещё не реализован,
// не считая их ошибкой.
type stubParser struct {
	ipType string
	logger *zap.Logger
}

func newStubParser(ipType string, logger *zap.Logger) *stubParser {
	return &stubParser{
		ipType: ipType,
		logger: logger.With(zap.String("parser", ipType)),
	}
}

func (s *stubParser) IPType() string { return s.ipType }

func (s *stubParser) RequiredColumns() []string {
	return []string{ColRegNumber}
}

func (s *stubParser) DateColumn() string   { return ColRegDate }
func (s *stubParser) ActualColumn() string { return ColActual }

// Parse возвращает нулевую статистику; строки каталога не обрабатываются.
func (s *stubParser) Parse(_ context.Context, table *catalogues.Table, cat *models.Catalogue, _ Options) (*Stats, error) {
	s.logger.Info("parser not implemented, catalogue acknowledged",
		zap.Uint("catalogue_id", cat.ID),
		zap.Int("rows", len(table.Rows)))
	return &Stats{}, nil
}
