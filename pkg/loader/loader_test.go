package loader

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/limaJavier/placement/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFiles(t *testing.T, files map[string]string) string {
	directory := t.TempDir()
	for name, content := range files {
		require.Nil(t, os.WriteFile(filepath.Join(directory, name), []byte(content), 0o644))
	}
	return directory
}

func TestLoadCsv(t *testing.T) {
	t.Run("English tables", func(t *testing.T) {
		//** Arrange
		directory := writeFiles(t, map[string]string{
			"pupils.csv":  "Id,Name\n1,Anna\n2,Bo\n\n3,Carl\n",
			"classes.csv": "Name,MaxInClass\n1A,2\n1B,1\n",
			"wishes.csv":  "PupilId1,PupilId2\n1,2\n",
		})

		//** Act
		input, err := Load("", directory)

		//** Assert
		require.Nil(t, err)
		assert.Equal(t, []model.Pupil{{Id: 1, Name: "Anna"}, {Id: 2, Name: "Bo"}, {Id: 3, Name: "Carl"}}, input.Pupils)
		assert.Equal(t, []model.Class{{Name: "1A", MaxInClass: 2}, {Name: "1B", MaxInClass: 1}}, input.Classes)
		assert.Equal(t, []model.Wish{{PupilId1: 1, PupilId2: 2}}, input.Wishes)
	})

	t.Run("Danish tables", func(t *testing.T) {
		//** Arrange
		directory := writeFiles(t, map[string]string{
			"elever.csv":  "\ufeffId,Name\n7,Søren\n8,Åse\n",
			"klasser.csv": "Name,MaxInClass,Teacher\n0X,30,Hansen\n",
			"oensker.csv": "ElevId1,ElevId2\n8,7\n",
		})

		//** Act
		input, err := LoadCsv(directory)

		//** Assert
		require.Nil(t, err)
		assert.Equal(t, []model.Pupil{{Id: 7, Name: "Søren"}, {Id: 8, Name: "Åse"}}, input.Pupils)
		assert.Equal(t, []model.Class{{Name: "0X", MaxInClass: 30}}, input.Classes)
		assert.Equal(t, []model.Wish{{PupilId1: 8, PupilId2: 7}}, input.Wishes)
	})

	t.Run("Wishes are optional", func(t *testing.T) {
		directory := writeFiles(t, map[string]string{
			"pupils.csv":  "Id,Name\n1,Anna\n",
			"classes.csv": "Name,MaxInClass\n1A,2\n",
		})

		input, err := LoadCsv(directory)

		require.Nil(t, err)
		assert.Empty(t, input.Wishes)
	})

	t.Run("Missing table", func(t *testing.T) {
		directory := writeFiles(t, map[string]string{
			"pupils.csv": "Id,Name\n1,Anna\n",
		})

		_, err := LoadCsv(directory)

		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("Malformed cell", func(t *testing.T) {
		directory := writeFiles(t, map[string]string{
			"pupils.csv":  "Id,Name\none,Anna\n",
			"classes.csv": "Name,MaxInClass\n1A,2\n",
		})

		_, err := LoadCsv(directory)

		assert.NotNil(t, err)
	})

	t.Run("Invalid references", func(t *testing.T) {
		directory := writeFiles(t, map[string]string{
			"pupils.csv":  "Id,Name\n1,Anna\n",
			"classes.csv": "Name,MaxInClass\n1A,2\n",
			"wishes.csv":  "PupilId1,PupilId2\n1,5\n",
		})

		_, err := LoadCsv(directory)

		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func workbook(t *testing.T, sheets map[string][][]any) *bytes.Buffer {
	file := excelize.NewFile()
	defer file.Close()

	for name, rows := range sheets {
		_, err := file.NewSheet(name)
		require.Nil(t, err)
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.Nil(t, err)
			require.Nil(t, file.SetSheetRow(name, cell, &row))
		}
	}
	require.Nil(t, file.DeleteSheet("Sheet1"))

	buffer, err := file.WriteToBuffer()
	require.Nil(t, err)
	return buffer
}

func TestReadXlsx(t *testing.T) {
	t.Run("Workbook", func(t *testing.T) {
		//** Arrange
		buffer := workbook(t, map[string][][]any{
			"Pupils":  {{"Id", "Name"}, {1, "Anna"}, {2, "Bo"}},
			"Classes": {{"Name", "MaxInClass"}, {"1A", 1}, {"1B", 0}},
			"Wishes":  {{"ElevId1", "ElevId2"}, {2, 1}},
		})

		//** Act
		input, err := ReadXlsx(buffer)

		//** Assert
		require.Nil(t, err)
		assert.Equal(t, []model.Pupil{{Id: 1, Name: "Anna"}, {Id: 2, Name: "Bo"}}, input.Pupils)
		assert.Equal(t, []model.Class{{Name: "1A", MaxInClass: 1}, {Name: "1B", MaxInClass: 0}}, input.Classes)
		assert.Equal(t, []model.Wish{{PupilId1: 2, PupilId2: 1}}, input.Wishes)
	})

	t.Run("Missing sheet", func(t *testing.T) {
		buffer := workbook(t, map[string][][]any{
			"elever": {{"Id", "Name"}, {1, "Anna"}},
		})

		_, err := ReadXlsx(buffer)

		assert.NotNil(t, err)
	})

	t.Run("From file", func(t *testing.T) {
		buffer := workbook(t, map[string][][]any{
			"elever":  {{"Id", "Name"}, {1, "Anna"}},
			"klasser": {{"Name", "MaxInClass"}, {"1A", 1}},
		})
		path := filepath.Join(t.TempDir(), "input.xlsx")
		require.Nil(t, os.WriteFile(path, buffer.Bytes(), 0o644))

		input, err := Load("", path)

		require.Nil(t, err)
		assert.Len(t, input.Pupils, 1)
		assert.Len(t, input.Classes, 1)
	})
}

func TestLoad(t *testing.T) {
	t.Run("Json", func(t *testing.T) {
		input, err := Load(FormatJson, "../../test/instances/two_classes.json")

		require.Nil(t, err)
		assert.Len(t, input.Pupils, 2)
	})

	t.Run("Inferred json", func(t *testing.T) {
		input, err := Load("", "../../test/instances/scenario_a.json")

		require.Nil(t, err)
		assert.Len(t, input.Classes, 1)
	})

	t.Run("Unknown format", func(t *testing.T) {
		_, err := Load("toml", "input.toml")

		assert.ErrorIs(t, err, ErrUnknownFormat)
	})
}
