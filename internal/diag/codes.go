package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Директивы (#pragma)
	DirInfo              Code = 1000
	DirUnknown           Code = 1001
	DirMissingAction     Code = 1002
	DirBadArity          Code = 1003
	DirBadName           Code = 1004
	DirBadVariable       Code = 1005
	DirUnterminatedQuote Code = 1006

	// Разрешение вариантов
	ResInfo              Code = 2000
	ResMissingInclude    Code = 2001
	ResMissingBlock      Code = 2002
	ResMissingSnippet    Code = 2003
	ResMissingSection    Code = 2004
	ResBlockCycle        Code = 2005
	ResUnsetVariable     Code = 2006
	ResMissingShader     Code = 2007
	ResMissingRenderMode Code = 2008

	// Реестр блоков
	RegInfo       Code = 3000
	RegCapacity   Code = 3001
	RegReplaced   Code = 3002
	RegCycle      Code = 3003
	RegBadName    Code = 3004
	RegUnknownDep Code = 3005

	// Компиляция
	CmpInfo       Code = 4000
	CmpFailed     Code = 4001
	CmpSuppressed Code = 4002
	CmpPreprocess Code = 4003

	// Манифест
	CfgInfo          Code = 5000
	CfgMissingField  Code = 5001
	CfgDuplicateName Code = 5002
	CfgNotFound      Code = 5003
	CfgDecode        Code = 5004

	IOInfo          Code = 6000
	IOLoadFileError Code = 6001
)

var (
	codeDescription = map[Code]string{
		UnknownCode:          "Unknown error",
		DirInfo:              "Directive information",
		DirUnknown:           "Unknown directive",
		DirMissingAction:     "Directive without action",
		DirBadArity:          "Wrong number of directive arguments",
		DirBadName:           "Invalid dependency name",
		DirBadVariable:       "Invalid context variable name",
		DirUnterminatedQuote: "Unterminated quoted argument",
		ResInfo:              "Resolution information",
		ResMissingInclude:    "Included module is not loaded",
		ResMissingBlock:      "Shading block is not registered",
		ResMissingSnippet:    "Snippet is not registered",
		ResMissingSection:    "Module section not found",
		ResBlockCycle:        "Shading block references itself",
		ResUnsetVariable:     "Context variable is unset and has no default",
		ResMissingShader:     "Shader is not registered",
		ResMissingRenderMode: "Render mode has no source",
		RegInfo:              "Registry information",
		RegCapacity:          "Shading block capacity exceeded",
		RegReplaced:          "Shading block re-registered",
		RegCycle:             "Shading block dependency cycle",
		RegBadName:           "Invalid registry name",
		RegUnknownDep:        "Shading block depends on unknown block",
		CmpInfo:              "Compile information",
		CmpFailed:            "Shader variant failed to compile",
		CmpSuppressed:        "Further compile failures suppressed",
		CmpPreprocess:        "Preprocessor error",
		CfgInfo:              "Manifest information",
		CfgMissingField:      "Missing required manifest field",
		CfgDuplicateName:     "Duplicate manifest entry",
		CfgNotFound:          "Manifest not found",
		CfgDecode:            "Malformed manifest",
		IOInfo:               "I/O information",
		IOLoadFileError:      "Failed to load file",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("DIR%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("RES%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("REG%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("CMP%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("CFG%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
