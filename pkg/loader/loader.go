package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/limaJavier/placement/pkg/model"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

var ErrUnknownFormat = errors.New("unknown input format")

const (
	FormatJson = "json"
	FormatCsv  = "csv"
	FormatXlsx = "xlsx"
)

var Formats = []string{FormatJson, FormatCsv, FormatXlsx}

// Table names, each followed by the names used by the Danish school tooling the files usually come from
var (
	pupilsNames  = []string{"pupils", "elever"}
	classesNames = []string{"classes", "klasser"}
	wishesNames  = []string{"wishes", "oensker"}
)

var headerAliases = map[string]string{
	"elevid1": "PupilId1",
	"elevid2": "PupilId2",
	"elevid":  "Id",
	"navn":    "Name",
	"maks":    "MaxInClass",
}

// Load reads the placement input stored at path. An empty format is inferred from the path: directories
// are read as CSV tables, files by their extension.
func Load(format, path string) (model.ModelInput, error) {
	if format == "" {
		format = inferFormat(path)
	}

	switch strings.ToLower(format) {
	case FormatJson:
		return model.InputFromJson(path)
	case FormatCsv:
		return LoadCsv(path)
	case FormatXlsx:
		return LoadXlsx(path)
	default:
		return model.ModelInput{}, fmt.Errorf("%w: \"%v\" (allowed values are %v)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
}

func inferFormat(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return FormatCsv
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// decodeTable decodes the rows below a header row into out, a pointer to a slice of structs. Cells are
// weakly typed, so "12" decodes into an integer field and an empty cell into its zero value.
func decodeTable(rows [][]string, out any) error {
	if len(rows) == 0 {
		return nil
	}

	header := lo.Map(rows[0], func(cell string, _ int) string {
		cell = strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff"))
		if alias, ok := headerAliases[strings.ToLower(cell)]; ok {
			return alias
		}
		return cell
	})

	records := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if lo.EveryBy(row, func(cell string) bool { return strings.TrimSpace(cell) == "" }) {
			continue
		}
		record := make(map[string]any, len(header))
		for i, column := range header {
			if i < len(row) {
				record[column] = strings.TrimSpace(row[i])
			} else {
				record[column] = ""
			}
		}
		records = append(records, record)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(records)
}
