package events

import (
	"encoding/json"
	"fmt"
)

// SetGenerationData sets the Data field with GenerationData in a type-safe way.
func (e *Event) SetGenerationData(data GenerationData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert GenerationData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetGenerationData retrieves GenerationData from the Data field.
func (e *Event) GetGenerationData() (*GenerationData, error) {
	var data GenerationData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse GenerationData: %w", err)
	}
	return &data, nil
}

// SetEvaluationData sets the Data field with EvaluationData in a type-safe way.
func (e *Event) SetEvaluationData(data EvaluationData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert EvaluationData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetEvaluationData retrieves EvaluationData from the Data field.
func (e *Event) GetEvaluationData() (*EvaluationData, error) {
	var data EvaluationData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse EvaluationData: %w", err)
	}
	return &data, nil
}

// SetRunCompletedData sets the Data field with RunCompletedData in a type-safe way.
func (e *Event) SetRunCompletedData(data RunCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert RunCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetRunCompletedData retrieves RunCompletedData from the Data field.
func (e *Event) GetRunCompletedData() (*RunCompletedData, error) {
	var data RunCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse RunCompletedData: %w", err)
	}
	return &data, nil
}

// SetQueryRoutedData sets the Data field with QueryRoutedData in a type-safe way.
func (e *Event) SetQueryRoutedData(data QueryRoutedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert QueryRoutedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetQueryRoutedData retrieves QueryRoutedData from the Data field.
func (e *Event) GetQueryRoutedData() (*QueryRoutedData, error) {
	var data QueryRoutedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse QueryRoutedData: %w", err)
	}
	return &data, nil
}

// SetAIUsageData sets the Data field with AIUsageData in a type-safe way.
func (e *Event) SetAIUsageData(data AIUsageData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert AIUsageData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetAIUsageData retrieves AIUsageData from the Data field.
func (e *Event) GetAIUsageData() (*AIUsageData, error) {
	var data AIUsageData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse AIUsageData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to a map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
