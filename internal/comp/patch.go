package comp

import (
	"regexp"
	"strings"
)

const (
	OutputMarker = "<replace_me_with_output>"
	InputMarker  = "<replace_me_with_input>"
)

// OutputDirName 是镜头目录下渲染输出子目录的固定名称。
const OutputDirName = "OUTPUT"

var (
	currentTimeRE = regexp.MustCompile(`CurrentTime\s*=\s*\d+`)
	renderRangeRE = regexp.MustCompile(`RenderRange\s*=\s*\{[^}]+\}`)
	globalRangeRE = regexp.MustCompile(`GlobalRange\s*=\s*\{[^}]+\}`)
)

// Values 是某个镜头的替换值。Input 为空表示未找到输入序列，输入占位符保持原样。
type Values struct {
	Range  string // 已翻译的区间字面量，例如 "{1001, 1050}"
	Output string
	Input  string
}

// Patch 依次应用全部 field patcher。
//
// 对 CurrentTime/RenderRange/GlobalRange 可重复执行（按字段名匹配，而不是按旧值）；
// 占位符只会被替换一次，替换后不再出现在文本中。
func Patch(doc string, v Values) string {
	doc = PatchCurrentTime(doc)
	doc = PatchRenderRange(doc, v.Range)
	doc = PatchGlobalRange(doc, v.Range)
	doc = PatchOutput(doc, v.Output)
	doc = PatchInput(doc, v.Input)
	return doc
}

// PatchCurrentTime 把播放头归零：CurrentTime = <int> -> CurrentTime = 0。
func PatchCurrentTime(doc string) string {
	return currentTimeRE.ReplaceAllLiteralString(doc, "CurrentTime = 0")
}

// PatchRenderRange 重写 RenderRange = {...}（允许跨行）。
func PatchRenderRange(doc, rng string) string {
	return renderRangeRE.ReplaceAllLiteralString(doc, "RenderRange = "+rng)
}

// PatchGlobalRange 重写 GlobalRange = {...}（允许跨行）。
func PatchGlobalRange(doc, rng string) string {
	return globalRangeRE.ReplaceAllLiteralString(doc, "GlobalRange = "+rng)
}

// PatchOutput 用 Saver 输出路径替换输出占位符。
func PatchOutput(doc, output string) string {
	if output == "" {
		return doc
	}
	return strings.ReplaceAll(doc, OutputMarker, SlashPath(output))
}

// PatchInput 用 Loader 首帧路径替换输入占位符；input 为空时不做任何修改。
func PatchInput(doc, input string) string {
	if input == "" {
		return doc
	}
	return strings.ReplaceAll(doc, InputMarker, SlashPath(input))
}

// OutputPath 返回 <shotDir>/OUTPUT/<shot>_.exr（正斜杠）。
// 扩展名前的 '_' 是渲染器的序列编号占位约定。
//
// 不走 path.Clean：它会把 UNC 路径开头的 "//" 折叠掉。
func OutputPath(shotDir, shot string) string {
	dir := strings.TrimRight(SlashPath(shotDir), "/")
	return dir + "/" + OutputDirName + "/" + shot + "_.exr"
}

// SlashPath 把所有 '\' 统一为 '/'（.comp 只接受正斜杠路径，与宿主系统无关）。
func SlashPath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
