package flow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"gopkg.in/yaml.v2"
)

const actionTimeout = 5 * time.Second

// Action is a user-authored post-processing script. It sees the handler
// output as `input` and its completion value becomes the new output.
type Action struct {
	Name   string `json:"name" yaml:"name"`
	Script string `json:"script" yaml:"script"`
}

// LoadActions reads every .json/.yml/.yaml action under dir. A missing
// directory yields no actions.
func LoadActions(dir string) (map[string]Action, error) {
	actions := make(map[string]Action)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return actions, nil
	}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isActionFile(path) {
			return nil
		}
		action, err := loadAction(path)
		if err != nil {
			return fmt.Errorf("error loading action from %s: %w", path, err)
		}
		actions[action.Name] = action
		return nil
	})
	return actions, err
}

func isActionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yml", ".yaml":
		return true
	}
	return false
}

func loadAction(path string) (Action, error) {
	var action Action
	data, err := os.ReadFile(path)
	if err != nil {
		return action, fmt.Errorf("error reading file %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &action)
	} else {
		err = yaml.Unmarshal(data, &action)
	}
	if err != nil {
		return action, fmt.Errorf("error parsing file %s: %w", path, err)
	}
	if action.Name == "" {
		action.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return action, nil
}

// ExecuteAction runs action over output. The script must evaluate to an
// object.
func ExecuteAction(action Action, output map[string]interface{}) (map[string]interface{}, error) {
	// round-trip through JSON so the script sees plain objects and arrays
	data, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("error marshaling action input: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("error marshaling action input: %w", err)
	}

	vm := goja.New()
	if err := vm.Set("input", input); err != nil {
		return nil, fmt.Errorf("error preparing action %s: %w", action.Name, err)
	}

	timer := time.AfterFunc(actionTimeout, func() {
		vm.Interrupt("action timed out")
	})
	defer timer.Stop()

	result, err := vm.RunString(action.Script)
	if err != nil {
		return nil, fmt.Errorf("error executing action script %s: %w", action.Name, err)
	}

	exported, ok := result.Export().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("action %s must evaluate to an object, got %T", action.Name, result.Export())
	}
	return exported, nil
}
