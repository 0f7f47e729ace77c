// Package main 启动应用程序
package main

import (
	"os"

	"github.com/yeisme/vistoria/pkg/cmd"
)

//	@title			Vistoria API
//	@version		1.0
//	@description	Relatórios de vistoria de obra: salvamento automático, aprovação, PDF e envio por e-mail.

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

//	@securityDefinitions.apikey	UserID
//	@in							header
//	@name						X-User-Id

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
