package config

const defaultBackend = "coreaudio"
