package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/limaJavier/placement/pkg/model"
)

// LoadCsv reads pupils.csv, classes.csv and wishes.csv (or elever.csv, klasser.csv and oensker.csv) from
// directory. The wishes table is optional.
func LoadCsv(directory string) (model.ModelInput, error) {
	var rawInput model.RawModelInput

	if err := readCsvTable(directory, pupilsNames, true, &rawInput.Pupils); err != nil {
		return model.ModelInput{}, err
	}
	if err := readCsvTable(directory, classesNames, true, &rawInput.Classes); err != nil {
		return model.ModelInput{}, err
	}
	if err := readCsvTable(directory, wishesNames, false, &rawInput.Wishes); err != nil {
		return model.ModelInput{}, err
	}

	return model.ProcessRawInput(rawInput)
}

func readCsvTable(directory string, names []string, required bool, out any) error {
	for _, name := range names {
		path := filepath.Join(directory, name+".csv")
		rows, err := readCsv(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return err
		}

		if err := decodeTable(rows, out); err != nil {
			return fmt.Errorf("cannot decode %v: %w", path, err)
		}
		return nil
	}

	if required {
		return fmt.Errorf("%w: none of %v.csv found in %v", fs.ErrNotExist, names, directory)
	}
	return nil
}

func readCsv(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("cannot read %v: %w", path, err)
	}
	return rows, nil
}
