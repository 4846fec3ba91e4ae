package localaudio

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/voialabs/callcore/core/telephony/localaudio"

var logger = otelslog.NewLogger(scopeName)
