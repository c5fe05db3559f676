package loader

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/limaJavier/placement/pkg/model"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
)

// LoadXlsx reads the sheets pupils, classes and wishes (or elever, klasser and oensker) of the workbook at
// path. Sheet names are matched case-insensitively and the wishes sheet is optional.
func LoadXlsx(path string) (model.ModelInput, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.ModelInput{}, fmt.Errorf("cannot open workbook: %w", err)
	}
	defer file.Close()
	return ReadXlsx(file)
}

func ReadXlsx(reader io.Reader) (model.ModelInput, error) {
	workbook, err := excelize.OpenReader(reader)
	if err != nil {
		return model.ModelInput{}, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer workbook.Close()

	var rawInput model.RawModelInput
	if err := readSheet(workbook, pupilsNames, true, &rawInput.Pupils); err != nil {
		return model.ModelInput{}, err
	}
	if err := readSheet(workbook, classesNames, true, &rawInput.Classes); err != nil {
		return model.ModelInput{}, err
	}
	if err := readSheet(workbook, wishesNames, false, &rawInput.Wishes); err != nil {
		return model.ModelInput{}, err
	}

	return model.ProcessRawInput(rawInput)
}

func readSheet(workbook *excelize.File, names []string, required bool, out any) error {
	sheet, ok := lo.Find(workbook.GetSheetList(), func(sheet string) bool {
		return lo.Contains(names, strings.ToLower(strings.TrimSpace(sheet)))
	})
	if !ok {
		if required {
			return fmt.Errorf("workbook has no sheet named any of %v", names)
		}
		return nil
	}

	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to get rows from sheet %s: %w", sheet, err)
	}
	if err := decodeTable(rows, out); err != nil {
		return fmt.Errorf("cannot decode sheet %s: %w", sheet, err)
	}
	return nil
}
