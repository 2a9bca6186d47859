package comp

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

const templateDoc = `Composition {
	CurrentTime = 1042,
	RenderRange = { 0, 1000, },
	GlobalRange = {
		0,
		1000,
	},
	Tools = ordered() {
		Loader1 = Loader {
			Clips = {
				Clip { Filename = "<replace_me_with_input>", },
			},
		},
		Saver1 = Saver {
			Inputs = {
				Clip = Input { Value = Clip { Filename = "<replace_me_with_output>", }, },
			},
		},
	},
}
`

func TestPatch_AllFields(t *testing.T) {
	got := Patch(templateDoc, Values{
		Range:  "{1001, 1050}",
		Output: `P:\MOVIE\FUSION\SH010/OUTPUT/SH010_.exr`,
		Input:  `R:\MOVIE\FILM\SH010\0003\SH010_0001_denoised.exr`,
	})

	want := `Composition {
	CurrentTime = 0,
	RenderRange = {1001, 1050},
	GlobalRange = {1001, 1050},
	Tools = ordered() {
		Loader1 = Loader {
			Clips = {
				Clip { Filename = "R:/MOVIE/FILM/SH010/0003/SH010_0001_denoised.exr", },
			},
		},
		Saver1 = Saver {
			Inputs = {
				Clip = Input { Value = Clip { Filename = "P:/MOVIE/FUSION/SH010/OUTPUT/SH010_.exr", }, },
			},
		},
	},
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("patch 结果不符合预期 (-want +got):\n%s", diff)
	}
}

func TestPatch_RangeFieldsIdempotent(t *testing.T) {
	v := Values{Range: "{1001, 1050}"}
	once := Patch(templateDoc, v)
	twice := Patch(once, v)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("重复 patch 应收敛 (-once +twice):\n%s", diff)
	}

	// 换一个区间再跑：按字段名匹配，旧值不影响结果。
	other := Patch(once, Values{Range: "{1, 2}"})
	assert.Contains(t, other, "RenderRange = {1, 2}")
	assert.Contains(t, other, "GlobalRange = {1, 2}")
}

func TestPatch_EmptyInputKeepsMarker(t *testing.T) {
	got := Patch(templateDoc, Values{Range: "{1, 2}", Output: "/p/SH010/OUTPUT/SH010_.exr"})
	assert.Contains(t, got, InputMarker)
	assert.NotContains(t, got, OutputMarker)
}

func TestPatchOutput_ConsumedMarkerIsNoop(t *testing.T) {
	once := PatchOutput(templateDoc, "/a/OUTPUT/A_.exr")
	twice := PatchOutput(once, "/b/OUTPUT/B_.exr")
	assert.Equal(t, once, twice)
	assert.NotContains(t, twice, "/b/")
}

func TestPatchCurrentTime_OnlyTouchesField(t *testing.T) {
	doc := "CurrentTime=77, Other = 5, CurrentTimeY = 3"
	got := PatchCurrentTime(doc)
	assert.Equal(t, "CurrentTime = 0, Other = 5, CurrentTimeY = 3", got)
}

func TestPatchRenderRange_DoesNotTouchGlobalRange(t *testing.T) {
	doc := "RenderRange = { 1, 2 },\nGlobalRange = { 3, 4 },"
	got := PatchRenderRange(doc, "{5, 6}")
	assert.Equal(t, "RenderRange = {5, 6},\nGlobalRange = { 3, 4 },", got)
}

func TestOutputPath_ForwardSlashes(t *testing.T) {
	for _, dir := range []string{
		`C:\proj\FUSION\SH010`,
		`C:\proj\FUSION\SH010\`,
		"/mnt/proj/FUSION/SH010",
		`\\server\share\FUSION\SH010`,
	} {
		got := OutputPath(dir, "SH010")
		assert.NotContains(t, got, `\`, "dir %q", dir)
		assert.True(t, strings.HasSuffix(got, "/OUTPUT/SH010_.exr"), "got %q", got)
	}
	assert.Equal(t, "//server/share/FUSION/SH010/OUTPUT/SH010_.exr", OutputPath(`\\server\share\FUSION\SH010`, "SH010"))
}
