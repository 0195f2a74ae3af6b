package godi

import (
	"context"
	"errors"
	"fmt"
)

// commission runs the creation concerns of a freshly built instance.
func commission(model *ComponentModel, instance any) error {
	if i, ok := instance.(Initializable); ok {
		if err := i.Initialize(); err != nil {
			return fmt.Errorf("initialize %s: %w", model.Name, err)
		}
	}

	for _, concern := range model.OnCreate {
		if err := concern(instance); err != nil {
			return fmt.Errorf("creation concern of %s: %w", model.Name, err)
		}
	}

	return nil
}

// decommission runs destruction concerns and disposes the instance.
// Concerns run in reverse registration order, disposal runs last.
// Externally supplied instances are never disposed.
func decommission(ctx context.Context, model *ComponentModel, instance any) error {
	var errs []error

	for i := len(model.OnDestroy) - 1; i >= 0; i-- {
		if err := model.OnDestroy[i](instance); err != nil {
			errs = append(errs, fmt.Errorf("destruction concern of %s: %w", model.Name, err))
		}
	}

	if model.HasInstance {
		return errors.Join(errs...)
	}

	switch d := instance.(type) {
	case DisposableWithContext:
		if err := d.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("dispose %s: %w", model.Name, err))
		}
	case Disposable:
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("dispose %s: %w", model.Name, err))
		}
	}

	return errors.Join(errs...)
}
