// Package comp 对 Fusion 合成工程（.comp）做窄范围的文本替换。
//
// 这里没有 .comp 解析器：每个字段/占位符对应一个独立的 patcher，
// 只匹配字段名及其紧跟的整数或花括号字面量，其余内容原样保留。
package comp
