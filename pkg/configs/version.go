package configs

// AppName 服务名称.
const AppName = "vistoria"

// AppVersion is overridden at build time with -ldflags "-X .../configs.AppVersion=...".
var AppVersion = "0.1.0"
