// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The rpi-source Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package cmdfactory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/spf13/cobra"

	"rpisource.sh/log"
)

// PreRunnable is implemented by options structs which need to resolve or
// validate state after flags have been parsed but before Run is invoked.
type PreRunnable interface {
	Pre(cmd *cobra.Command, args []string) error
}

// Runnable is the contract between an options struct and the cobra command
// generated for it.
type Runnable interface {
	Run(ctx context.Context, args []string) error
}

// New populates a cobra.Command from the struct tags of the provided Runnable
// object.  Exported fields annotated with a `long` tag become flags of the
// command; `short`, `usage` and `default` tags are honoured.  The object's
// Run method is bound to the command's RunE.
func New(obj Runnable, cmd cobra.Command) (*cobra.Command, error) {
	c := cmd

	if p, ok := obj.(PreRunnable); ok {
		c.PreRunE = p.Pre
	}

	c.SilenceErrors = true
	c.SilenceUsage = true
	c.DisableFlagsInUseLine = true
	c.InitDefaultHelpFlag()

	if obj != nil {
		c.RunE = func(cmd *cobra.Command, args []string) error {
			return obj.Run(cmd.Context(), args)
		}

		if err := AttributeFlags(&c, obj); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// AttributeFlags registers each tagged public attribute of obj as a flag on
// the given cobra command.  The flag values are bound directly to the struct
// fields, so after parsing the object holds the effective configuration.
func AttributeFlags(c *cobra.Command, obj any) error {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("expected pointer to struct, got %T", obj)
	}

	v = v.Elem()
	t := v.Type()
	flags := c.Flags()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("long")
		if name == "" {
			continue
		}

		alias := field.Tag.Get("short")
		usage := field.Tag.Get("usage")
		def := field.Tag.Get("default")

		if !v.Field(i).CanAddr() {
			return fmt.Errorf("field %s is not addressable", field.Name)
		}

		addr := v.Field(i).Addr().Interface()

		switch field.Type.Kind() {
		case reflect.String:
			flags.StringVarP(addr.(*string), name, alias, def, usage)

		case reflect.Bool:
			defBool := false
			if def != "" {
				var err error
				if defBool, err = strconv.ParseBool(def); err != nil {
					return fmt.Errorf("invalid bool default for --%s: %w", name, err)
				}
			}
			flags.BoolVarP(addr.(*bool), name, alias, defBool, usage)

		case reflect.Int:
			defInt := 0
			if def != "" {
				var err error
				if defInt, err = strconv.Atoi(def); err != nil {
					return fmt.Errorf("invalid int default for --%s: %w", name, err)
				}
			}
			flags.IntVarP(addr.(*int), name, alias, defInt, usage)

		default:
			return fmt.Errorf("unsupported flag kind %s on field %s", field.Type.Kind(), field.Name)
		}
	}

	return nil
}

// Main executes the given command and translates its outcome into a process
// exit code.
func Main(ctx context.Context, cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, ErrSilent) {
			return 1
		}

		var flagErr *FlagError
		if errors.As(err, &flagErr) {
			fmt.Fprintln(cmd.ErrOrStderr(), flagErr)
			fmt.Fprintf(cmd.ErrOrStderr(), "Run '%s --help' for usage.\n", cmd.CommandPath())
			return 1
		}

		log.G(ctx).Error(err)
		return 1
	}

	return 0
}
