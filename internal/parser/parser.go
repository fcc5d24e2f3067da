package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	stderrors "errors" // Standard errors package

	"github.com/mcncl/schemagen/internal/errors" // Custom errors package
	"github.com/mcncl/schemagen/internal/logging"
	"github.com/mcncl/schemagen/internal/models"
)

// Source names used when a document does not come from a file
const (
	SourceStdin  = "stdin"
	SourceString = "<string>"
)

// Parse converts JSON data from an io.Reader into an IntermediateRepresentation.
// The reader must hold exactly one JSON value.
func Parse(reader io.Reader) (models.IntermediateRepresentation, error) {
	decoder := newDecoder(reader)

	rootValue, err := decodeValue(decoder)
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return models.IntermediateRepresentation{}, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
		}
		return models.IntermediateRepresentation{}, err
	}

	// Only whitespace may follow the first value
	if decoder.More() {
		var trailingValue interface{}
		if err := decoder.Decode(&trailingValue); err != nil {
			if !stderrors.Is(err, io.EOF) {
				return models.IntermediateRepresentation{}, errors.NewParsingError("invalid trailing data after first JSON value", err)
			}
		} else {
			return models.IntermediateRepresentation{}, errors.NewParsingError("multiple JSON values found at the root", errors.ErrMultipleJSON)
		}
	}

	return newIR(rootValue, "", 0), nil
}

// ParseStream splits a stream of concatenated or newline-delimited JSON values
// into one IntermediateRepresentation per value.
func ParseStream(reader io.Reader, source string) ([]models.IntermediateRepresentation, error) {
	decoder := newDecoder(reader)

	var docs []models.IntermediateRepresentation
	for {
		value, err := decodeValue(decoder)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var appErr *errors.AppError
			if stderrors.As(err, &appErr) {
				appErr.Message = fmt.Sprintf("document %d: %s", len(docs)+1, appErr.Message)
			}
			return nil, err
		}
		docs = append(docs, newIR(value, source, len(docs)))
	}

	if len(docs) == 0 {
		return nil, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
	}
	return docs, nil
}

func newDecoder(reader io.Reader) *json.Decoder {
	decoder := json.NewDecoder(reader)
	decoder.UseNumber() // Ensure numbers are read as json.Number
	return decoder
}

// decodeValue reads the next value from decoder, mapping decoder failures to
// parsing errors. io.EOF is returned untouched when the stream is exhausted.
func decodeValue(decoder *json.Decoder) (models.JSONValue, error) {
	var value models.JSONValue
	if err := decoder.Decode(&value); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		if stderrors.As(err, &syntaxError) {
			return nil, errors.NewParsingError(
				fmt.Sprintf("JSON syntax error at offset %d", syntaxError.Offset),
				errors.ErrInvalidJSON,
			)
		}
		if stderrors.As(err, &unmarshalTypeError) {
			return nil, errors.NewParsingError(
				fmt.Sprintf("JSON type error at offset %d for type %s", unmarshalTypeError.Offset, unmarshalTypeError.Type),
				errors.ErrInvalidJSON,
			)
		}
		return nil, errors.NewParsingError("failed to decode JSON", err)
	}
	return normalizeJSONValue(value), nil
}

func newIR(root models.JSONValue, source string, index int) models.IntermediateRepresentation {
	_, isArray := root.(models.JSONArray)
	return models.IntermediateRepresentation{
		Root:        root,
		RootIsArray: isArray,
		Source:      source,
		Index:       index,
	}
}

// normalizeJSONValue converts raw JSON types into our model types
func normalizeJSONValue(val models.JSONValue) models.JSONValue {
	switch v := val.(type) {
	case map[string]interface{}:
		obj := make(models.JSONObject, len(v))
		for key, value := range v {
			obj[key] = normalizeJSONValue(value)
		}
		return obj
	case []interface{}:
		arr := make(models.JSONArray, len(v))
		for i, value := range v {
			arr[i] = normalizeJSONValue(value)
		}
		return arr
	default:
		return v // Primitives (string, json.Number, bool, nil) are returned as is
	}
}

// ParseString parses JSON from a string
func ParseString(jsonString string) (models.IntermediateRepresentation, error) {
	if strings.TrimSpace(jsonString) == "" {
		return models.IntermediateRepresentation{}, errors.NewInputError("input string is empty or consists only of whitespace", errors.ErrEmptyInput)
	}
	ir, err := Parse(strings.NewReader(jsonString))
	if err != nil {
		return models.IntermediateRepresentation{}, err
	}
	ir.Source = SourceString
	return ir, nil
}

// ParseFile parses a single JSON document from a file path
func ParseFile(filePath string) (models.IntermediateRepresentation, error) {
	file, err := openFile(filePath)
	if err != nil {
		return models.IntermediateRepresentation{}, err
	}
	defer closeFile(file)

	ir, err := Parse(file)
	if err != nil {
		return models.IntermediateRepresentation{}, err
	}
	ir.Source = filePath
	return ir, nil
}

// ParseFileStream parses every JSON value of a newline-delimited file
func ParseFileStream(filePath string) ([]models.IntermediateRepresentation, error) {
	file, err := openFile(filePath)
	if err != nil {
		return nil, err
	}
	defer closeFile(file)

	return ParseStream(file, filePath)
}

// ParseFS parses a single JSON document named name inside fsys
func ParseFS(fsys fs.FS, name string) (models.IntermediateRepresentation, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return models.IntermediateRepresentation{}, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", name),
				errors.ErrFileNotFound,
			)
		}
		return models.IntermediateRepresentation{}, errors.NewInputError(
			fmt.Sprintf("failed to read file '%s'", name),
			err,
		)
	}
	if len(data) == 0 {
		return models.IntermediateRepresentation{}, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", name),
			errors.ErrFileEmpty,
		)
	}

	ir, err := Parse(bytes.NewReader(data))
	if err != nil {
		return models.IntermediateRepresentation{}, err
	}
	ir.Source = name
	return ir, nil
}

// openFile opens filePath for reading, rejecting missing and empty files
func openFile(filePath string) (*os.File, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", filePath),
				errors.ErrFileNotFound,
			)
		}
		return nil, errors.NewInputError(
			fmt.Sprintf("failed to open file '%s'", filePath),
			err,
		)
	}

	stat, err := file.Stat()
	if err != nil {
		closeFile(file)
		return nil, errors.NewInputError(
			fmt.Sprintf("failed to get file stats for '%s'", filePath),
			err,
		)
	}
	if stat.Size() == 0 {
		closeFile(file)
		return nil, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", filePath),
			errors.ErrFileEmpty,
		)
	}
	return file, nil
}

func closeFile(file *os.File) {
	if err := file.Close(); err != nil {
		logging.Logger().Warn("closing input file", "file", file.Name(), "error", err)
	}
}
