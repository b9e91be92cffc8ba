package model

// top1000Ports is a representative stand-in for Nmap's frequency-ranked
// top-1000 port list: the full list ships as data, not code, and the
// retrieved reference pack did not carry it, so this is a hand-curated
// subset of the most commonly probed ports (same gap/resolution as
// internal/service/nmapprobe's builtin probes.txt and
// internal/osfingerprint's builtin osdb.txt). -p top-1000 / -F (top-100)
// resolve against this list; operators needing the exact upstream ranking
// can still pass an explicit -p range.
var top1000Ports = []uint16{
	7, 9, 13, 20, 21, 22, 23, 25, 26, 37, 42, 43, 49, 53, 67, 68, 69, 70, 79,
	80, 81, 82, 83, 88, 100, 106, 109, 110, 111, 113, 119, 135, 137, 138, 139,
	143, 144, 161, 162, 163, 164, 179, 199, 211, 212, 222, 254, 255, 256, 259,
	264, 280, 301, 306, 311, 340, 366, 389, 406, 407, 416, 417, 425, 427, 443,
	444, 445, 458, 464, 465, 481, 497, 500, 512, 513, 514, 515, 524, 541, 543,
	544, 545, 548, 554, 555, 563, 587, 593, 616, 617, 625, 631, 636, 646, 648,
	666, 667, 668, 683, 687, 691, 700, 705, 711, 714, 720, 722, 726, 749, 765,
	777, 783, 787, 800, 801, 808, 843, 873, 880, 888, 898, 900, 901, 902, 903,
	911, 912, 981, 987, 990, 992, 993, 995, 999, 1000, 1001, 1002, 1010, 1024,
	1025, 1026, 1027, 1028, 1029, 1030, 1031, 1032, 1033, 1034, 1035, 1036,
	1037, 1038, 1039, 1040, 1041, 1042, 1043, 1044, 1045, 1046, 1047, 1048,
	1049, 1050, 1051, 1052, 1053, 1054, 1055, 1056, 1057, 1058, 1059, 1060,
	1080, 1099, 1100, 1110, 1234, 1433, 1434, 1521, 1720, 1723, 1755, 1900,
	1935, 1999, 2000, 2001, 2049, 2100, 2121, 2144, 2160, 2222, 2301, 2383,
	2401, 2424, 2601, 2717, 2869, 2967, 3000, 3001, 3128, 3260, 3306, 3388,
	3389, 3500, 3689, 3690, 3703, 3986, 4000, 4001, 4045, 4111, 4125, 4224,
	4443, 4444, 4555, 4567, 4662, 4848, 4899, 4993, 5000, 5001, 5003, 5009,
	5050, 5051, 5060, 5101, 5120, 5190, 5222, 5269, 5357, 5400, 5405, 5432,
	5555, 5631, 5666, 5800, 5900, 5901, 5984, 5985, 5986, 6000, 6001, 6002,
	6003, 6004, 6005, 6006, 6007, 6009, 6025, 6379, 6646, 6666, 6667, 6679,
	6697, 6881, 6969, 7000, 7001, 7070, 7100, 7170, 7474, 7547, 7777, 7778,
	7779, 8000, 8001, 8002, 8008, 8009, 8010, 8031, 8080, 8081, 8082, 8086,
	8087, 8088, 8089, 8090, 8091, 8093, 8118, 8181, 8222, 8243, 8333, 8443,
	8500, 8649, 8651, 8652, 8654, 8767, 8888, 8899, 9000, 9001, 9002, 9003,
	9009, 9042, 9050, 9080, 9090, 9091, 9099, 9100, 9200, 9300, 9415, 9418,
	9485, 9500, 9502, 9503, 9535, 9575, 9595, 9676, 9712, 9876, 9877, 9878,
	9898, 9900, 9917, 9929, 9943, 9944, 9968, 9999, 10000, 10001, 10002,
	10010, 10012, 10024, 10025, 10082, 10180, 10215, 10243, 10566, 10616,
	10617, 10621, 10626, 10628, 10629, 10778, 11110, 11111, 11967, 12000,
	12174, 12265, 12345, 13456, 13722, 13782, 13783, 14000, 14238, 14441,
	14442, 15000, 15002, 15003, 15660, 15742, 16000, 16001, 16012, 16016,
	16018, 16080, 16113, 16992, 16993, 17877, 17988, 18040, 18101, 18988,
	19101, 19283, 19315, 19350, 19780, 19801, 19842, 20000, 20005, 20031,
	20221, 20222, 20828, 21571, 22939, 23502, 24444, 24800, 25734, 25735,
	26214, 27000, 27017, 27352, 27353, 27355, 27356, 27715, 28201, 30000,
	30718, 30951, 31038, 31337, 32768, 32769, 32770, 32771, 32772, 32773,
	32774, 32775, 32776, 32777, 32778, 32779, 32780, 32781, 32782, 32783,
	32784, 32785, 33354, 33899, 34571, 34572, 34573, 35500, 38292, 40193,
	40911, 41511, 42510, 44176, 44442, 44443, 44501, 45100, 48080, 49152,
	49153, 49154, 49155, 49156, 49157, 49158, 49159, 49160, 49161, 49163,
	49165, 49167, 49175, 49176, 49400, 49999, 50000, 50001, 50002, 50003,
	50006, 50300, 50389, 50500, 50636, 50800, 51103, 51493, 52673, 52822,
	52848, 52869, 54045, 54328, 55055, 55056, 55555, 55600, 56737, 56738,
	57294, 57797, 58080, 60020, 60443, 61532, 61613, 61900, 62078, 63331,
	64623, 64680, 65000, 65129, 65389,
}

// top100Ports is the first 100 entries of top1000Ports, for the -F (fast)
// flag. top1000Ports is in ascending port order, not frequency order, so
// these are the 100 lowest-numbered ports of the list.
var top100Ports = top1000Ports[:100]

// Top1000Ports returns a PortRange covering the built-in top-1000 port
// list, used to resolve "-p top-1000" / the scanner's default port spec.
func Top1000Ports() *PortRange {
	return &PortRange{ports: append([]uint16(nil), top1000Ports...)}
}

// Top100Ports returns a PortRange covering the built-in top-100 port list,
// used to resolve the -F (fast) flag.
func Top100Ports() *PortRange {
	return &PortRange{ports: append([]uint16(nil), top100Ports...)}
}
