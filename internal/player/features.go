package player

// Feature is a media-player capability bit.
type Feature uint32

// Media-player features.
const (
	FeaturePause Feature = 1 << iota
	FeaturePlay
	FeatureTurnOn
	FeatureTurnOff
	FeaturePreviousTrack
	FeatureNextTrack
	FeatureSelectSource
	FeatureStop
	FeatureVolumeMute
	FeatureVolumeSet
	FeatureVolumeStep
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeaturePause, "pause"},
	{FeaturePlay, "play"},
	{FeatureTurnOn, "turn_on"},
	{FeatureTurnOff, "turn_off"},
	{FeaturePreviousTrack, "previous_track"},
	{FeatureNextTrack, "next_track"},
	{FeatureSelectSource, "select_source"},
	{FeatureStop, "stop"},
	{FeatureVolumeMute, "volume_mute"},
	{FeatureVolumeSet, "volume_set"},
	{FeatureVolumeStep, "volume_step"},
}

// Feature sets per device class. Fire TV exposes no volume control.
const (
	FireTVFeatures = FeaturePause | FeaturePlay | FeatureTurnOn | FeatureTurnOff |
		FeaturePreviousTrack | FeatureNextTrack | FeatureSelectSource | FeatureStop

	AndroidTVFeatures = FireTVFeatures | FeatureVolumeMute | FeatureVolumeSet | FeatureVolumeStep
)

// Has reports whether all bits of f2 are set in f.
func (f Feature) Has(f2 Feature) bool {
	return f&f2 == f2
}

// Names lists the set features in a fixed order.
func (f Feature) Names() []string {
	names := make([]string, 0, len(featureNames))
	for _, fn := range featureNames {
		if f.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	return names
}
