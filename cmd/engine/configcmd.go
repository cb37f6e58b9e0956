package main

import (
	"errors"
	"fmt"

	"internship-engine/internal/config"
)

type ConfigCmd struct {
	Validate ConfigValidateCmd `cmd:"" help:"Check config.yml and list problems"`
	Path     ConfigPathCmd     `cmd:"" help:"Print the config file path"`
}

type ConfigValidateCmd struct{}

func (ConfigValidateCmd) Run(g *Globals) error {
	path, cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	_, v := config.NormalizeAndValidate(cfg)
	for _, w := range v.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	for _, e := range v.Errors {
		fmt.Printf("error: %s\n", e)
	}
	if !v.OK() {
		return errors.New(path + " is invalid")
	}
	fmt.Printf("%s is valid\n", path)
	return nil
}

type ConfigPathCmd struct{}

func (ConfigPathCmd) Run(g *Globals) error {
	path, _, err := loadConfig(g)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
