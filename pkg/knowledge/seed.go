package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arclight-sec/sentinel-assistant/pkg/mitre"
)

// seedIncident is a synthetic historical incident used to bootstrap the
// knowledge base before live Sentinel incidents are ingested.
type seedIncident struct {
	ID              string
	Title           string
	Severity        string
	Status          string
	Description     string
	MitreTechniques string
	Entities        string
}

// playbook sections become separate chunks so a search can land on the
// investigation steps without dragging in containment guidance.
type playbookSection struct {
	Section string
	Content string
}

type playbook struct {
	ID              string
	IncidentType    string
	MitreTechniques string
	Sections        []playbookSection
}

var seedIncidents = []seedIncident{
	{
		ID: "synthetic-001", Title: "Phishing email with malicious attachment detected",
		Severity: "High", Status: "Closed",
		Description: "A phishing email containing a weaponized Excel macro was delivered to multiple users in the finance department. The attachment was flagged by Defender for Office 365 after two users opened it.",
		MitreTechniques: "T1566,T1204",
		Entities:        "user: jsmith@contoso.com, user: mgarcia@contoso.com, host: WS-FIN01",
	},
	{
		ID: "synthetic-002", Title: "Credential harvesting phishing campaign targeting HR",
		Severity: "High", Status: "Active",
		Description: "A coordinated phishing campaign using spoofed login pages was detected targeting HR personnel. The attacker registered a typosquatted domain contoso-hr-portal.com to harvest credentials.",
		MitreTechniques: "T1566,T1078",
		Entities:        "user: kpatel@contoso.com, user: lwong@contoso.com, domain: contoso-hr-portal.com",
	},
	{
		ID: "synthetic-003", Title: "Spear phishing with PDF lure targeting executives",
		Severity: "Medium", Status: "Closed",
		Description: "A targeted spear phishing email was sent to three C-level executives containing a malicious PDF that attempted to download a second-stage payload from a compromised WordPress site.",
		MitreTechniques: "T1566,T1204,T1059",
		Entities:        "user: ceo@contoso.com, user: cfo@contoso.com, url: hxxps://compromised-wp[.]net/stage2",
	},
	{
		ID: "synthetic-004", Title: "Brute force attack against VPN gateway",
		Severity: "High", Status: "Closed",
		Description: "Over 15,000 failed authentication attempts were detected against the corporate VPN gateway from a single IP address in Eastern Europe over a 4-hour window. No successful logins confirmed.",
		MitreTechniques: "T1110",
		Entities:        "ip: 185.220.101.42, host: VPN-GW01",
	},
	{
		ID: "synthetic-005", Title: "Password spray attack on Azure AD accounts",
		Severity: "Medium", Status: "Active",
		Description: "A low-and-slow password spray was detected against Azure AD, cycling through common passwords across hundreds of accounts to stay under lockout thresholds. Three accounts showed successful sign-ins from the spraying infrastructure.",
		MitreTechniques: "T1110,T1078",
		Entities:        "user: svc-backup@contoso.com, ip: 102.129.235.10",
	},
	{
		ID: "synthetic-006", Title: "Ransomware encryption activity on file server",
		Severity: "High", Status: "Active",
		Description: "Mass file modification with a ransom-note extension was observed on a departmental file server. The encryption process was initiated from a compromised service account during off-hours.",
		MitreTechniques: "T1486,T1078",
		Entities:        "host: FS-OPS02, user: svc-print@contoso.com",
	},
	{
		ID: "synthetic-007", Title: "Impossible travel sign-in for finance user",
		Severity: "Medium", Status: "Closed",
		Description: "A user signed in from Chicago and then from Lagos within 40 minutes. The second session issued mailbox forwarding rules before being revoked.",
		MitreTechniques: "T1078,T1114",
		Entities:        "user: tnguyen@contoso.com, ip: 197.210.52.8",
	},
	{
		ID: "synthetic-008", Title: "Large outbound transfer to personal cloud storage",
		Severity: "High", Status: "Active",
		Description: "A departing employee uploaded 12 GB of project documentation to a personal cloud storage account over two evenings, flagged by unusual egress volume from their workstation.",
		MitreTechniques: "T1567,T1530",
		Entities:        "user: dharris@contoso.com, host: WS-ENG14",
	},
	{
		ID: "synthetic-009", Title: "Privilege escalation via misconfigured service",
		Severity: "High", Status: "Closed",
		Description: "A user-writable service binary path allowed replacement of the executable with a payload that granted SYSTEM privileges on a shared terminal server.",
		MitreTechniques: "T1574,T1068",
		Entities:        "host: TS-SHARED01, user: contractor3@contoso.com",
	},
	{
		ID: "synthetic-010", Title: "Lateral movement via remote service creation",
		Severity: "High", Status: "Active",
		Description: "After compromising a workstation, the attacker created remote services on two servers using harvested administrator credentials, consistent with PsExec-style tooling.",
		MitreTechniques: "T1021,T1570",
		Entities:        "host: WS-HD03, host: APP-SRV01, host: APP-SRV02",
	},
	{
		ID: "synthetic-011", Title: "LSASS memory dump attempt detected on workstation",
		Severity: "High", Status: "Closed",
		Description: "An attempt to dump LSASS process memory was detected on a developer workstation using a renamed copy of procdump. The attempt was blocked by Credential Guard but indicates an attacker with local admin access.",
		MitreTechniques: "T1003",
		Entities:        "user: ekim@contoso.com, host: WS-DEV07, process: svchelper.exe",
	},
}

var playbooks = []playbook{
	{
		ID: "phishing-01", IncidentType: "Phishing", MitreTechniques: "T1566,T1204,T1534",
		Sections: []playbookSection{
			{Section: "investigation", Content: "Phishing Investigation Playbook: Begin by identifying all recipients who received the phishing email. Check the email gateway logs for the sender address and subject line across the organization. Determine how many users clicked the link or opened the attachment by cross-referencing with endpoint telemetry. Check SigninLogs for failed sign-in clusters by UserPrincipalName and IPAddress after delivery time. Also check for any new inbox rules created by compromised accounts, and verify whether credentials were harvested by checking for password changes or MFA registrations after the email was sent."},
			{Section: "indicators", Content: "Phishing Indicators Playbook: Key indicators include spoofed sender addresses with subtle domain variations, URLs pointing to recently registered domains, attachments with double extensions, and urgency language in the email body. Check SPF, DKIM, and DMARC results in the headers. Look for encoded or obfuscated URLs and newly created inbox forwarding rules which attackers use for persistence."},
			{Section: "containment", Content: "Phishing Containment Playbook: Quarantine the email across all mailboxes, block the sender domain and any payload URLs at the gateway and proxy, reset credentials and revoke sessions for users who interacted with the message, and remove attacker-created inbox rules. Escalate to the incident commander if an executive account or more than ten users are affected."},
		},
	},
	{
		ID: "bruteforce-01", IncidentType: "Brute Force", MitreTechniques: "T1110,T1078",
		Sections: []playbookSection{
			{Section: "investigation", Content: "Brute Force Investigation Playbook: Establish the scope by counting failed authentications per source IP and per target account. Distinguish password spray (many accounts, few attempts each) from targeted brute force (one account, many attempts). Check whether any attempt succeeded after the failure cluster, and review sign-in logs for the successful session's IP, device, and location."},
			{Section: "containment", Content: "Brute Force Containment Playbook: Block the source IP ranges at the firewall and conditional access layer, force password resets on any account with a successful sign-in from attack infrastructure, enforce MFA on targeted accounts, and tighten lockout thresholds if spray patterns continue."},
		},
	},
	{
		ID: "malware-01", IncidentType: "Malware", MitreTechniques: "T1486,T1059,T1204",
		Sections: []playbookSection{
			{Section: "investigation", Content: "Malware Investigation Playbook: Identify the initial execution vector from endpoint telemetry, capture the process tree around the detection, and extract file hashes for reputation lookups. Map any network connections made by the malicious process and search the estate for the same hashes or command lines on other hosts."},
			{Section: "containment", Content: "Malware Containment Playbook: Isolate affected hosts from the network, disable compromised accounts, and block identified command-and-control addresses. For ransomware, prioritize stopping the encryption process and protecting backups before any remediation. Escalate immediately if encryption activity is ongoing."},
		},
	},
	{
		ID: "signin-01", IncidentType: "Suspicious Sign-in", MitreTechniques: "T1078,T1114",
		Sections: []playbookSection{
			{Section: "investigation", Content: "Suspicious Sign-in Investigation Playbook: Compare the suspicious session against the user's baseline locations, devices, and hours. For impossible travel, verify both sign-ins are interactive and not VPN artifacts. Review what the session did: mailbox rules, OAuth consents, file access, and MFA changes are the highest-risk actions."},
			{Section: "containment", Content: "Suspicious Sign-in Containment Playbook: Revoke refresh tokens and active sessions, reset the password, remove attacker-created mailbox rules and OAuth grants, and re-register MFA with the user over a verified channel."},
		},
	},
	{
		ID: "exfil-01", IncidentType: "Data Exfiltration", MitreTechniques: "T1567,T1530,T1048",
		Sections: []playbookSection{
			{Section: "investigation", Content: "Data Exfiltration Investigation Playbook: Quantify what left the environment: destination, volume, and time range. Identify the data classification of accessed files and whether the volume is anomalous against the user's baseline. Check for staging behavior such as mass downloads or archive creation shortly before egress."},
			{Section: "containment", Content: "Data Exfiltration Containment Playbook: Block the destination service for the user, suspend the account pending review, preserve endpoint and proxy logs for the transfer window, and engage legal and HR when insider activity is suspected."},
		},
	},
}

// IncidentDocuments renders the seed incidents as embeddable documents.
// Structured fields become readable text to maximize embedding quality.
func IncidentDocuments() []Document {
	docs := make([]Document, 0, len(seedIncidents))
	for _, inc := range seedIncidents {
		parts := []string{
			"Security Incident: " + inc.Title,
			"Severity: " + inc.Severity,
			"Status: " + inc.Status,
			"Description: " + inc.Description,
			"MITRE ATT&CK Techniques: " + inc.MitreTechniques,
			"Affected Entities: " + inc.Entities,
		}
		docs = append(docs, Document{
			ID:   inc.ID,
			Text: strings.Join(parts, "\n"),
			Metadata: map[string]any{
				"title":           inc.Title,
				"severity":        inc.Severity,
				"status":          inc.Status,
				"source":          "synthetic",
				"mitreTechniques": inc.MitreTechniques,
			},
		})
	}
	return docs
}

// PlaybookDocuments renders each playbook section as a self-contained chunk.
func PlaybookDocuments() []Document {
	var docs []Document
	for _, pb := range playbooks {
		for i, section := range pb.Sections {
			docs = append(docs, Document{
				ID:   fmt.Sprintf("%s-%s-%d", pb.ID, section.Section, i),
				Text: fmt.Sprintf("Playbook: %s - %s\n\n%s", pb.IncidentType, section.Section, section.Content),
				Metadata: map[string]any{
					"playbookId":      pb.ID,
					"incidentType":    pb.IncidentType,
					"mitreTechniques": pb.MitreTechniques,
					"section":         section.Section,
				},
			})
		}
	}
	return docs
}

// TechniqueDocuments renders ATT&CK techniques as searchable reference
// chunks so guidance searches can surface technique context.
func TechniqueDocuments(techniques []mitre.Technique) []Document {
	docs := make([]Document, 0, len(techniques))
	for _, tech := range techniques {
		docs = append(docs, Document{
			ID: "attack-" + tech.TechniqueID,
			Text: fmt.Sprintf("MITRE ATT&CK %s: %s\nTactics: %s\n\n%s",
				tech.TechniqueID, tech.Name, strings.Join(tech.Tactics, ", "), tech.Description),
			Metadata: map[string]any{
				"playbookId":      "attack-" + tech.TechniqueID,
				"incidentType":    "ATT&CK Reference",
				"mitreTechniques": tech.TechniqueID,
				"section":         "technique",
			},
		})
	}
	return docs
}

// Seed loads the synthetic incidents, playbooks, and any ATT&CK reference
// techniques into the store.
func (s *Store) Seed(ctx context.Context, techniques []mitre.Technique) error {
	incidents, err := s.UpsertIncidents(ctx, IncidentDocuments())
	if err != nil {
		return err
	}
	chunks, err := s.UpsertPlaybooks(ctx, PlaybookDocuments())
	if err != nil {
		return err
	}
	refs, err := s.UpsertPlaybooks(ctx, TechniqueDocuments(techniques))
	if err != nil {
		return err
	}
	s.logger.Info("seeded knowledge base",
		zap.Int("incidents", incidents),
		zap.Int("playbook_chunks", chunks),
		zap.Int("attack_references", refs))
	return nil
}
