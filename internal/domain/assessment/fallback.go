package assessment

type fallbackKey struct {
	state  SeverityState
	hasGeo bool
}

var fallbackTable = map[fallbackKey]GuidanceBundle{
	{SeverityNone, false}: {
		Suggestion: LocalizedText{
			EN: "Your responses suggest you are doing well. Keep up the positive habits!",
			ID: "Jawaban Anda menunjukkan kondisi Anda baik. Pertahankan kebiasaan positif Anda!",
		},
		Tips: LocalizedText{
			EN: "Keep a regular sleep schedule, stay active and stay connected with people you trust.",
			ID: "Jaga jadwal tidur yang teratur, tetap aktif, dan tetap terhubung dengan orang yang Anda percaya.",
		},
	},
	{SeverityMild, false}: {
		Suggestion: LocalizedText{
			EN: "You might be experiencing mild symptoms. Consider monitoring your mood and practicing self-care.",
			ID: "Anda mungkin mengalami gejala ringan. Cobalah memantau suasana hati Anda dan merawat diri.",
		},
		Tips: LocalizedText{
			EN: "Write down how you feel each day and set aside time for rest and activities you enjoy.",
			ID: "Catat perasaan Anda setiap hari dan sisihkan waktu untuk beristirahat serta melakukan hal yang Anda sukai.",
		},
	},
	{SeverityModerate, false}: {
		Suggestion: LocalizedText{
			EN: "Your responses indicate moderate symptoms. It would be beneficial to talk to a mental health professional.",
			ID: "Jawaban Anda menunjukkan gejala sedang. Akan bermanfaat jika Anda berbicara dengan tenaga profesional kesehatan mental.",
		},
		Tips: LocalizedText{
			EN: "Reach out to a counselor, psychologist or your doctor, and let someone close to you know how you are feeling.",
			ID: "Hubungi konselor, psikolog, atau dokter Anda, dan beri tahu orang terdekat tentang apa yang Anda rasakan.",
		},
	},
	{SeveritySevere, false}: {
		Suggestion: LocalizedText{
			EN: "It appears you are facing significant challenges. It is highly recommended to seek professional help.",
			ID: "Tampaknya Anda sedang menghadapi tantangan yang berat. Sangat disarankan untuk mencari bantuan profesional.",
		},
		Tips: LocalizedText{
			EN: "Asking for help is a sign of strength. Contact a crisis line or emergency services if you are in danger, and enable location sharing so we can suggest services near you.",
			ID: "Meminta bantuan adalah tanda kekuatan. Hubungi layanan krisis atau layanan darurat jika Anda dalam bahaya, dan aktifkan berbagi lokasi agar kami dapat menyarankan layanan di dekat Anda.",
		},
	},
}

var severeWithGeo = GuidanceBundle{
	Suggestion: fallbackTable[fallbackKey{SeveritySevere, false}].Suggestion,
	Tips: LocalizedText{
		EN: "Please visit the nearest hospital emergency unit or community mental health clinic, or call a local crisis line. Asking for help is a sign of strength.",
		ID: "Silakan kunjungi unit gawat darurat rumah sakit atau klinik kesehatan jiwa terdekat, atau hubungi layanan krisis setempat. Meminta bantuan adalah tanda kekuatan.",
	},
}

func init() {
	fallbackTable[fallbackKey{SeveritySevere, true}] = severeWithGeo
	for _, state := range []SeverityState{SeverityNone, SeverityMild, SeverityModerate} {
		fallbackTable[fallbackKey{state, true}] = fallbackTable[fallbackKey{state, false}]
	}
}

// FallbackGuidance returns the static bundle for a state. It is pure and
// needs no network. Unknown states get the Severe entry.
func FallbackGuidance(state SeverityState, hasGeo bool) GuidanceBundle {
	if !state.Valid() {
		state = SeveritySevere
	}
	return fallbackTable[fallbackKey{state: state, hasGeo: hasGeo}]
}
