//go:build !darwin

package config

const defaultBackend = "pulse"
